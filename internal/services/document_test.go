package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexidoc/legal-doc-analyzer/internal/document"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
	"github.com/lexidoc/legal-doc-analyzer/pkg/taskqueue"
)

func TestUploadAndProcessDocument(t *testing.T) {
	env := setupTestEnv(t)

	fileID := ingestTestContract(t, env)

	doc, err := env.repo.GetByID(fileID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Equal(t, 100, doc.Progress)
	assert.Equal(t, "contract.txt", doc.FileName)
	assert.Greater(t, doc.SegmentCount, 0, "should record chunk count")

	// Chunks are persisted both as segments and as vectors.
	segments, err := env.repo.GetSegments(fileID)
	require.NoError(t, err)
	assert.Len(t, segments, doc.SegmentCount)

	count, err := env.vectorDB.Count()
	require.NoError(t, err)
	assert.Equal(t, doc.SegmentCount, count, "vector count should match segment count")

	// Segment IDs line up with vector store IDs.
	for _, segment := range segments {
		_, err := env.vectorDB.Get(segment.SegmentID)
		assert.NoError(t, err, "segment %s should have a stored vector", segment.SegmentID)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.service.UploadDocument(context.Background(), strings.NewReader("data"), "photo.png")
	assert.ErrorIs(t, err, document.ErrUnsupportedType)
}

func TestProcessDocumentValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	assert.Error(t, env.service.ProcessDocument(ctx, "", "/tmp/file.txt"))
	assert.Error(t, env.service.ProcessDocument(ctx, "doc-1", ""))
}

func TestProcessDocumentMissingFile(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.status.MarkAsUploaded(ctx, "ghost", "ghost.txt", "/nonexistent/ghost.txt", 10))

	err := env.service.ProcessDocument(ctx, "ghost", "/nonexistent/ghost.txt")
	require.Error(t, err, "processing a missing file should fail")

	// The failure is recorded, not swallowed.
	doc, getErr := env.repo.GetByID("ghost")
	require.NoError(t, getErr)
	assert.Equal(t, models.DocStatusFailed, doc.Status)
	assert.NotEmpty(t, doc.Error)
}

func TestDeleteDocument(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	fileID := ingestTestContract(t, env)

	require.NoError(t, env.service.DeleteDocument(ctx, fileID))

	_, err := env.repo.GetByID(fileID)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	count, err := env.vectorDB.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "vectors should be removed with the document")

	exists, err := env.storage.Exists(fileID)
	require.NoError(t, err)
	assert.False(t, exists, "stored file should be removed")
}

func TestClearAll(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ingestTestContract(t, env)

	require.NoError(t, env.service.ClearAll(ctx))

	docs, total, err := env.service.ListDocuments(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, total)

	count, err := env.vectorDB.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	files, err := env.storage.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDocumentInfo(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	fileID := ingestTestContract(t, env)

	info, err := env.service.GetDocumentInfo(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, fileID, info["file_id"])
	assert.Equal(t, "contract.txt", info["filename"])
	assert.Equal(t, models.DocStatusCompleted, info["status"])
	assert.Equal(t, 100, info["progress"])
}

func TestDocumentTaskHandler(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	fileID, err := env.service.UploadDocument(ctx, strings.NewReader(testContractText), "contract.txt")
	require.NoError(t, err)

	doc, err := env.repo.GetByID(fileID)
	require.NoError(t, err)

	handler := NewDocumentTaskHandler(env.service, nil)
	assert.Equal(t, []taskqueue.TaskType{taskqueue.TaskProcessDocument}, handler.GetTaskTypes())

	payload, err := taskqueue.MarshalPayload(taskqueue.ProcessDocumentPayload{
		DocumentID: fileID,
		FilePath:   doc.FilePath,
		FileName:   doc.FileName,
		FileType:   "txt",
	})
	require.NoError(t, err)

	task := &taskqueue.Task{
		ID:         "task-1",
		Type:       taskqueue.TaskProcessDocument,
		DocumentID: fileID,
		Payload:    payload,
	}

	require.NoError(t, handler.ProcessTask(ctx, task))

	status, err := env.service.GetDocumentStatus(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, status)
}

func TestDocumentTaskHandlerBadPayload(t *testing.T) {
	env := setupTestEnv(t)

	handler := NewDocumentTaskHandler(env.service, nil)

	err := handler.ProcessTask(context.Background(), &taskqueue.Task{
		ID:   "task-2",
		Type: taskqueue.TaskProcessDocument,
	})
	assert.Error(t, err, "empty payload should be rejected")

	err = handler.ProcessTask(context.Background(), &taskqueue.Task{
		ID:   "task-3",
		Type: taskqueue.TaskType("unknown"),
	})
	assert.Error(t, err, "unknown task type should be rejected")
}
