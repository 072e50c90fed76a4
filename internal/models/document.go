package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus is the processing state of an uploaded document.
type DocumentStatus string

const (
	// DocStatusUploaded means the file is stored and queued for processing.
	DocStatusUploaded DocumentStatus = "uploaded"
	// DocStatusProcessing means the ingestion pipeline is running.
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted means all chunks are embedded and stored.
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed means the pipeline stopped on an error.
	DocStatusFailed DocumentStatus = "failed"
)

// ProcessStage is the pipeline phase a document is currently in.
type ProcessStage string

const (
	StageExtracting  ProcessStage = "extracting"
	StageChunking    ProcessStage = "chunking"
	StageVectorizing ProcessStage = "vectorizing"
	StageCompleted   ProcessStage = "completed"
)

// Document stores the metadata of an uploaded file.
type Document struct {
	ID            string         `gorm:"primaryKey"`         // document ID
	FileName      string         `gorm:"not null"`           // original file name
	FileType      string         `gorm:"not null"`           // content type
	FilePath      string         `gorm:"not null"`           // storage path
	FileSize      int64          `gorm:"not null"`           // size in bytes
	Status        DocumentStatus `gorm:"not null;index"`     // processing state
	UploadedAt    time.Time      `gorm:"not null;index"`     // upload time
	ProcessedAt   *time.Time     `gorm:"index"`              // completion time
	UpdatedAt     time.Time      `gorm:"not null;index"`     // last update
	Progress      int            `gorm:"not null;default:0"` // 0-100
	Error         string         `gorm:"type:text"`          // failure reason
	SegmentCount  int            `gorm:"not null;default:0"` // number of chunks
	PageCount     int            `gorm:"not null;default:0"` // number of pages
	Tags          string         `gorm:"type:varchar(255)"`  // comma-separated tags
	Metadata      datatypes.JSON `gorm:"type:json"`          // extra metadata
	CurrentStage  ProcessStage   `gorm:"size:20"`            // pipeline phase
	CurrentTaskID string         `gorm:"size:50;index"`      // async task ID, if queued
}

// BeforeCreate sets timestamps on insert.
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate refreshes the update timestamp.
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

func (Document) TableName() string {
	return "documents"
}

// DocumentSegment tracks one text chunk of a document.
type DocumentSegment struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	DocumentID string         `gorm:"not null;index"`       // owning document
	SegmentID  string         `gorm:"not null;uniqueIndex"` // chunk ID, shared with the vector store
	Position   int            `gorm:"not null"`             // chunk index within the document
	Page       int            `gorm:"not null;default:0"`   // 1-based source page
	Text       string         `gorm:"type:text;not null"`   // chunk text
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
	Metadata   datatypes.JSON `gorm:"type:json"` // chunk metadata
}

// BeforeCreate sets timestamps on insert.
func (ds *DocumentSegment) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the update timestamp.
func (ds *DocumentSegment) BeforeUpdate(tx *gorm.DB) (err error) {
	ds.UpdatedAt = time.Now()
	return nil
}

func (DocumentSegment) TableName() string {
	return "document_segments"
}
