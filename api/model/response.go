package model

import (
	"time"

	"github.com/lexidoc/legal-doc-analyzer/internal/llm"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
	"github.com/lexidoc/legal-doc-analyzer/internal/services"
)

// Response is the envelope every endpoint replies with.
// Code 0 means success.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentUploadResponse acknowledges an accepted upload.
type DocumentUploadResponse struct {
	FileID   string `json:"file_id"`
	FileName string `json:"filename"`
	Status   string `json:"status"`
}

// DocumentStatusResponse reports a document's processing state.
type DocumentStatusResponse struct {
	FileID    string `json:"file_id"`
	Status    string `json:"status"`
	FileName  string `json:"filename"`
	Stage     string `json:"stage,omitempty"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	Segments  int    `json:"segments,omitempty"`
	Pages     int    `json:"pages,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DocumentInfo is one entry in a document listing.
type DocumentInfo struct {
	FileID     string `json:"file_id"`
	FileName   string `json:"filename"`
	Status     string `json:"status"`
	Tags       string `json:"tags,omitempty"`
	UploadedAt string `json:"uploaded_at"`
	Segments   int    `json:"segments"`
	Pages      int    `json:"pages"`
	SizeBytes  int64  `json:"size_bytes"`
}

// DocumentListResponse is a paged document listing.
type DocumentListResponse struct {
	Total     int64          `json:"total"`
	Page      int            `json:"page"`
	PageSize  int            `json:"page_size"`
	Documents []DocumentInfo `json:"documents"`
}

// DocumentDeleteResponse acknowledges a deletion.
type DocumentDeleteResponse struct {
	Success bool   `json:"success"`
	FileID  string `json:"file_id"`
}

// ClearResponse acknowledges a full database reset.
type ClearResponse struct {
	Success bool `json:"success"`
}

// QASourceInfo is one cited passage in an answer.
type QASourceInfo struct {
	Text     string  `json:"text"`
	FileID   string  `json:"file_id"`
	FileName string  `json:"filename"`
	Page     int     `json:"page,omitempty"`
	Score    float32 `json:"score"`
}

// QAResponse is an answer with its citations.
type QAResponse struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []QASourceInfo `json:"sources"`
}

// ClauseInfo is one extracted clause.
type ClauseInfo struct {
	Topic   string         `json:"topic"`
	Found   bool           `json:"found"`
	Text    string         `json:"text,omitempty"`
	Sources []QASourceInfo `json:"sources,omitempty"`
}

// ClauseResponse lists the extracted clauses of one document.
type ClauseResponse struct {
	FileID  string       `json:"file_id"`
	Clauses []ClauseInfo `json:"clauses"`
}

// SummaryResponse is a generated document summary.
type SummaryResponse struct {
	FileID  string `json:"file_id"`
	Summary string `json:"summary"`
}

// ConvertSources maps generator citations to API source entries.
func ConvertSources(sources []llm.SourceReference) []QASourceInfo {
	if len(sources) == 0 {
		return []QASourceInfo{}
	}

	out := make([]QASourceInfo, len(sources))
	for i, source := range sources {
		out[i] = QASourceInfo{
			Text:     source.Content,
			FileID:   source.FileID,
			FileName: source.FileName,
			Page:     source.Page,
			Score:    source.Score,
		}
	}
	return out
}

// ConvertClauses maps clause extraction results to API entries.
func ConvertClauses(results []services.ClauseResult) []ClauseInfo {
	out := make([]ClauseInfo, len(results))
	for i, result := range results {
		out[i] = ClauseInfo{
			Topic:   result.Topic,
			Found:   result.Found,
			Text:    result.Text,
			Sources: ConvertSources(result.Sources),
		}
	}
	return out
}

// ConvertDocumentInfo maps a document record to a listing entry.
func ConvertDocumentInfo(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		FileID:     doc.ID,
		FileName:   doc.FileName,
		Status:     string(doc.Status),
		Tags:       doc.Tags,
		UploadedAt: doc.UploadedAt.Format(time.RFC3339),
		Segments:   doc.SegmentCount,
		Pages:      doc.PageCount,
		SizeBytes:  doc.FileSize,
	}
}
