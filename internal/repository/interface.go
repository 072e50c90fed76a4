package repository

import "github.com/lexidoc/legal-doc-analyzer/internal/models"

// DocumentRepository stores and retrieves document metadata.
type DocumentRepository interface {
	// Create inserts a document record.
	Create(doc *models.Document) error

	// Update saves a document record.
	Update(doc *models.Document) error

	// GetByID returns a document by ID.
	GetByID(id string) (*models.Document, error)

	// List returns documents with paging and filters.
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete removes a document record.
	Delete(id string) error

	// DeleteAll removes every document and segment record.
	DeleteAll() error

	// UpdateStatus updates a document's processing state.
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateProgress updates a document's progress percentage.
	UpdateProgress(id string, progress int) error

	// SaveSegment inserts one chunk record.
	SaveSegment(segment *models.DocumentSegment) error

	// SaveSegments inserts chunk records in batch.
	SaveSegments(segments []*models.DocumentSegment) error

	// GetSegments returns a document's chunks ordered by position.
	GetSegments(docID string) ([]*models.DocumentSegment, error)

	// CountSegments counts a document's chunks.
	CountSegments(docID string) (int, error)

	// DeleteSegments removes a document's chunks.
	DeleteSegments(docID string) error
}
