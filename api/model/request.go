package model

import (
	"mime/multipart"
	"time"
)

// PaginationRequest carries common paging parameters.
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"`
}

// GetPage returns the page number, defaulting to 1.
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize returns the page size, defaulting to 10 and capped at 100.
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DocumentUploadRequest uploads one document for ingestion.
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
	Tags string                `form:"tags" json:"tags" binding:"omitempty,taglist"`
}

// DocumentIDRequest addresses one document by path parameter.
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"`
}

// DocumentListRequest filters the document listing.
type DocumentListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" json:"start_time" binding:"omitempty"`
	EndTime   *time.Time `form:"end_time" json:"end_time" binding:"omitempty"`
	Status    string     `form:"status" json:"status" binding:"omitempty"`
	Tags      string     `form:"tags" json:"tags" binding:"omitempty"`
}

// QARequest asks a question, optionally scoped to one document.
type QARequest struct {
	Question string `json:"question" binding:"required"`
	FileID   string `json:"file_id" binding:"omitempty"`
	TopK     int    `json:"top_k" binding:"omitempty,min=1,max=20"`
}

// ClauseRequest extracts clause topics from one document.
// Topics defaults to the standard contract clause set.
type ClauseRequest struct {
	Topics []string `form:"topics" json:"topics" binding:"omitempty"`
}
