package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/lexidoc/legal-doc-analyzer/api/middleware"
	"github.com/lexidoc/legal-doc-analyzer/api/model"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
	"github.com/lexidoc/legal-doc-analyzer/internal/services"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
)

// AnalysisHandler serves clause extraction and summary endpoints.
type AnalysisHandler struct {
	analysisService *services.AnalysisService
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(analysisService *services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// ExtractClauses finds standard contract clauses in one document.
// Custom topics can be passed as repeated "topics" query parameters.
func (h *AnalysisHandler) ExtractClauses(c *gin.Context) {
	var uri model.DocumentIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document ID", err.Error()))
		return
	}

	var req model.ClauseRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid clause request", err.Error()))
		return
	}

	var (
		clauses []services.ClauseResult
		err     error
	)
	if len(req.Topics) > 0 {
		clauses, err = h.analysisService.ExtractClauses(c.Request.Context(), uri.ID, req.Topics)
	} else {
		clauses, err = h.analysisService.ExtractKeyClauses(c.Request.Context(), uri.ID)
	}
	if err != nil {
		h.handleAnalysisError(c, err, "failed to extract clauses")
		return
	}

	respondOK(c, model.ClauseResponse{
		FileID:  uri.ID,
		Clauses: model.ConvertClauses(clauses),
	})
}

// Summarize generates a short summary of one document.
func (h *AnalysisHandler) Summarize(c *gin.Context) {
	var uri model.DocumentIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid document ID", err.Error()))
		return
	}

	summary, err := h.analysisService.Summarize(c.Request.Context(), uri.ID)
	if err != nil {
		h.handleAnalysisError(c, err, "failed to summarize document")
		return
	}

	respondOK(c, model.SummaryResponse{
		FileID:  uri.ID,
		Summary: summary.Answer,
	})
}

func (h *AnalysisHandler) handleAnalysisError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
	case errors.Is(err, vectordb.ErrModelMismatch):
		middleware.HandleError(c, middleware.NewConflictError(
			"stored vectors were built with a different embedding model", err.Error()))
	default:
		middleware.HandleError(c, middleware.NewInternalError(message, err))
	}
}
