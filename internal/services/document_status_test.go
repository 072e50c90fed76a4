package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexidoc/legal-doc-analyzer/internal/models"
)

func TestStatusLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.status.MarkAsUploaded(ctx, "doc-1", "contract.pdf", "/uploads/contract.pdf", 2048))

	status, err := env.status.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusUploaded, status)

	require.NoError(t, env.status.MarkAsProcessing(ctx, "doc-1"))
	status, err = env.status.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, status)

	require.NoError(t, env.status.MarkAsCompleted(ctx, "doc-1", 12, 3))
	doc, err := env.status.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Equal(t, 12, doc.SegmentCount)
	assert.Equal(t, 3, doc.PageCount)
	assert.Equal(t, 100, doc.Progress)
	assert.Equal(t, models.StageCompleted, doc.CurrentStage)
}

func TestStatusInvalidTransitions(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.status.MarkAsUploaded(ctx, "doc-2", "contract.pdf", "/uploads/contract.pdf", 2048))
	require.NoError(t, env.status.MarkAsProcessing(ctx, "doc-2"))
	require.NoError(t, env.status.MarkAsCompleted(ctx, "doc-2", 1, 1))

	// Completed documents do not go back to processing.
	err := env.status.MarkAsProcessing(ctx, "doc-2")
	assert.Error(t, err, "completed document should not re-enter processing")

	err = env.status.MarkAsCompleted(ctx, "doc-2", 1, 1)
	assert.Error(t, err, "completed document should not complete twice")
}

func TestStatusFailedRetry(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.status.MarkAsUploaded(ctx, "doc-3", "contract.pdf", "/uploads/contract.pdf", 2048))
	require.NoError(t, env.status.MarkAsProcessing(ctx, "doc-3"))
	require.NoError(t, env.status.MarkAsFailed(ctx, "doc-3", "embedding provider unavailable"))

	doc, err := env.status.GetDocument(ctx, "doc-3")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, doc.Status)
	assert.Equal(t, "embedding provider unavailable", doc.Error)

	// Failed documents may be retried.
	require.NoError(t, env.status.MarkAsProcessing(ctx, "doc-3"))
}

func TestStatusProgress(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.status.MarkAsUploaded(ctx, "doc-4", "contract.pdf", "/uploads/contract.pdf", 2048))

	// Progress updates require the processing state.
	err := env.status.UpdateProgress(ctx, "doc-4", 50)
	assert.Error(t, err)

	require.NoError(t, env.status.MarkAsProcessing(ctx, "doc-4"))
	require.NoError(t, env.status.UpdateProgress(ctx, "doc-4", 50))

	doc, err := env.status.GetDocument(ctx, "doc-4")
	require.NoError(t, err)
	assert.Equal(t, 50, doc.Progress)
}

func TestStatusUnknownDocument(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.status.GetStatus(ctx, "missing")
	assert.Error(t, err)

	err = env.status.MarkAsProcessing(ctx, "missing")
	assert.Error(t, err)
}
