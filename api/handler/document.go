package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexidoc/legal-doc-analyzer/api/middleware"
	"github.com/lexidoc/legal-doc-analyzer/api/model"
	"github.com/lexidoc/legal-doc-analyzer/internal/document"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
	"github.com/lexidoc/legal-doc-analyzer/internal/services"
)

// DocumentHandler serves document upload, status and lifecycle endpoints.
type DocumentHandler struct {
	documentService *services.DocumentService
	qaService       *services.QAService
	processTimeout  time.Duration
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(docService *services.DocumentService, qaService *services.QAService) *DocumentHandler {
	return &DocumentHandler{
		documentService: docService,
		qaService:       qaService,
		processTimeout:  10 * time.Minute,
	}
}

// UploadDocument stores an uploaded file and starts the ingestion pipeline.
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid upload request", err.Error()))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewValidationError("cannot open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	fileID, err := h.documentService.UploadDocument(c.Request.Context(), file, req.File.Filename)
	if err != nil {
		if errors.Is(err, document.ErrUnsupportedType) {
			middleware.HandleError(c, middleware.NewValidationError("unsupported file type", err.Error()))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to store document", err))
		return
	}

	if req.Tags != "" {
		if err := h.documentService.UpdateDocumentTags(c.Request.Context(), fileID, req.Tags); err != nil {
			middleware.GetLogger().WithError(err).WithField("file_id", fileID).Warn("failed to save document tags")
		}
	}

	doc, err := h.documentService.GetStatusManager().GetDocument(c.Request.Context(), fileID)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to load document record", err))
		return
	}

	// Ingestion continues after the response is written.
	go func(id, path string) {
		ctx, cancel := context.WithTimeout(context.Background(), h.processTimeout)
		defer cancel()

		if err := h.documentService.ProcessDocument(ctx, id, path); err != nil {
			middleware.GetLogger().WithError(err).WithField("file_id", id).Error("document processing failed")
		}
	}(fileID, doc.FilePath)

	respondOK(c, model.DocumentUploadResponse{
		FileID:   fileID,
		FileName: req.File.Filename,
		Status:   string(models.DocStatusProcessing),
	})
}

// GetDocumentStatus reports the processing state of one document.
func (h *DocumentHandler) GetDocumentStatus(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document ID", err.Error()))
		return
	}

	doc, err := h.documentService.GetStatusManager().GetDocument(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to load document status", err))
		return
	}

	resp := model.DocumentStatusResponse{
		FileID:    doc.ID,
		Status:    string(doc.Status),
		FileName:  doc.FileName,
		Stage:     string(doc.CurrentStage),
		Progress:  doc.Progress,
		Error:     doc.Error,
		Segments:  doc.SegmentCount,
		Pages:     doc.PageCount,
		CreatedAt: doc.UploadedAt.Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.Format(time.RFC3339),
	}

	respondOK(c, resp)
}

// ListDocuments returns a page of uploaded documents.
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid list request", err.Error()))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), offset, pageSize, filters)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to list documents", err))
		return
	}

	items := make([]model.DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		items = append(items, model.ConvertDocumentInfo(doc))
	}

	respondOK(c, model.DocumentListResponse{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Documents: items,
	})
}

// DeleteDocument removes one document with its chunks and vectors.
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document ID", err.Error()))
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), req.ID); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("failed to delete document", err))
		return
	}

	if err := h.qaService.ClearCache(); err != nil {
		middleware.GetLogger().WithError(err).Warn("failed to clear answer cache after delete")
	}

	respondOK(c, model.DocumentDeleteResponse{
		Success: true,
		FileID:  req.ID,
	})
}

// ClearDocuments wipes every document, chunk, vector and cached answer.
func (h *DocumentHandler) ClearDocuments(c *gin.Context) {
	if err := h.documentService.ClearAll(c.Request.Context()); err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to clear documents", err))
		return
	}

	if err := h.qaService.ClearCache(); err != nil {
		middleware.GetLogger().WithError(err).Warn("failed to clear answer cache after reset")
	}

	respondOK(c, model.ClearResponse{
		Success: true,
	})
}
