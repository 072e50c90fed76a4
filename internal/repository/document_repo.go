package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/lexidoc/legal-doc-analyzer/internal/database"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
)

// docRepository is the gorm-backed DocumentRepository.
type docRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a repository on the global database.
func NewDocumentRepository() DocumentRepository {
	return &docRepository{db: database.MustDB()}
}

// NewDocumentRepositoryWithDB creates a repository on a given connection.
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{db: db}
}

// Create inserts a document record.
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Create(doc).Error
}

// Update saves a document record.
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Save(doc).Error
}

// GetByID returns a document by ID.
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List returns documents with paging and filters.
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	if filters != nil {
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.DocumentStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			}
		}
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("uploaded_at >= ?", startTime)
		}
		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("uploaded_at <= ?", endTime)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete removes a document record and its segments.
func (r *docRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentSegment{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrDocumentNotFound
		}
		return nil
	})
}

// DeleteAll removes every document and segment record.
func (r *docRepository) DeleteAll() error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.DocumentSegment{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Document{}).Error
	})
}

// UpdateStatus updates a document's processing state.
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}
	if status == models.DocStatusCompleted {
		now := time.Now()
		updates["processed_at"] = &now
		updates["progress"] = 100
	}

	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// UpdateProgress updates a document's progress percentage.
func (r *docRepository) UpdateProgress(id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"progress":   progress,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// SaveSegment inserts one chunk record.
func (r *docRepository) SaveSegment(segment *models.DocumentSegment) error {
	return r.db.Create(segment).Error
}

// SaveSegments inserts chunk records in batch.
func (r *docRepository) SaveSegments(segments []*models.DocumentSegment) error {
	if len(segments) == 0 {
		return nil
	}
	return r.db.CreateInBatches(segments, 100).Error
}

// GetSegments returns a document's chunks ordered by position.
func (r *docRepository) GetSegments(docID string) ([]*models.DocumentSegment, error) {
	var segments []*models.DocumentSegment
	err := r.db.Where("document_id = ?", docID).
		Order("position ASC").
		Find(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}

// CountSegments counts a document's chunks.
func (r *docRepository) CountSegments(docID string) (int, error) {
	var count int64
	err := r.db.Model(&models.DocumentSegment{}).
		Where("document_id = ?", docID).
		Count(&count).Error
	return int(count), err
}

// DeleteSegments removes a document's chunks.
func (r *docRepository) DeleteSegments(docID string) error {
	return r.db.Where("document_id = ?", docID).Delete(&models.DocumentSegment{}).Error
}
