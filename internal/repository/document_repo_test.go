package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lexidoc/legal-doc-analyzer/internal/models"
)

func setupTestRepo(t *testing.T) DocumentRepository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Should open test database")

	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.DocumentSegment{}))

	return NewDocumentRepositoryWithDB(db)
}

func testDocument(id string) *models.Document {
	return &models.Document{
		ID:       id,
		FileName: id + ".pdf",
		FileType: "application/pdf",
		FilePath: "/uploads/" + id + ".pdf",
		FileSize: 1024,
		Status:   models.DocStatusUploaded,
	}
}

func TestDocumentCRUD(t *testing.T) {
	repo := setupTestRepo(t)

	doc := testDocument("doc1")
	require.NoError(t, repo.Create(doc))
	assert.False(t, doc.UploadedAt.IsZero(), "BeforeCreate hook should set the upload time")

	require.Error(t, repo.Create(&models.Document{}), "Should reject empty ID")

	got, err := repo.GetByID("doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1.pdf", got.FileName)

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	got.Tags = "contract,legal"
	require.NoError(t, repo.Update(got))

	got, err = repo.GetByID("doc1")
	require.NoError(t, err)
	assert.Equal(t, "contract,legal", got.Tags)

	require.NoError(t, repo.Delete("doc1"))
	_, err = repo.GetByID("doc1")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	assert.ErrorIs(t, repo.Delete("doc1"), models.ErrDocumentNotFound)
}

func TestDocumentList(t *testing.T) {
	repo := setupTestRepo(t)

	docA := testDocument("a")
	docA.Status = models.DocStatusCompleted
	docA.Tags = "contract"
	require.NoError(t, repo.Create(docA))

	docB := testDocument("b")
	docB.Status = models.DocStatusFailed
	require.NoError(t, repo.Create(docB))

	docs, total, err := repo.List(0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, docs, 2)

	docs, total, err = repo.List(0, 10, map[string]interface{}{
		"status": models.DocStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	docs, _, err = repo.List(0, 10, map[string]interface{}{"tags": "contract"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	// paging
	docs, total, err = repo.List(0, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, docs, 1)
}

func TestStatusAndProgress(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.Create(testDocument("doc1")))

	require.NoError(t, repo.UpdateStatus("doc1", models.DocStatusProcessing, ""))
	doc, err := repo.GetByID("doc1")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, doc.Status)

	require.NoError(t, repo.UpdateProgress("doc1", 50))
	doc, _ = repo.GetByID("doc1")
	assert.Equal(t, 50, doc.Progress)

	// completing sets the processed timestamp and full progress
	require.NoError(t, repo.UpdateStatus("doc1", models.DocStatusCompleted, ""))
	doc, _ = repo.GetByID("doc1")
	assert.Equal(t, 100, doc.Progress)
	assert.NotNil(t, doc.ProcessedAt)

	// failure keeps the error message
	require.NoError(t, repo.UpdateStatus("doc1", models.DocStatusFailed, "embedding failed"))
	doc, _ = repo.GetByID("doc1")
	assert.Equal(t, "embedding failed", doc.Error)

	assert.ErrorIs(t, repo.UpdateStatus("missing", models.DocStatusCompleted, ""), models.ErrDocumentNotFound)
}

func TestSegments(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.Create(testDocument("doc1")))

	segments := []*models.DocumentSegment{
		{DocumentID: "doc1", SegmentID: "doc1-1", Position: 1, Page: 1, Text: "second chunk"},
		{DocumentID: "doc1", SegmentID: "doc1-0", Position: 0, Page: 1, Text: "first chunk"},
	}
	require.NoError(t, repo.SaveSegments(segments))

	got, err := repo.GetSegments("doc1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first chunk", got[0].Text, "Segments should be ordered by position")

	count, err := repo.CountSegments("doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.DeleteSegments("doc1"))
	count, _ = repo.CountSegments("doc1")
	assert.Equal(t, 0, count)
}

func TestDeleteAll(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.Create(testDocument("doc1")))
	require.NoError(t, repo.Create(testDocument("doc2")))
	require.NoError(t, repo.SaveSegment(&models.DocumentSegment{
		DocumentID: "doc1", SegmentID: "doc1-0", Position: 0, Text: "chunk",
	}))

	require.NoError(t, repo.DeleteAll())

	_, total, err := repo.List(0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	count, err := repo.CountSegments("doc1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
