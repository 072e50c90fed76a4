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

// QAHandler serves question answering endpoints.
type QAHandler struct {
	qaService *services.QAService
}

// NewQAHandler creates a QA handler.
func NewQAHandler(qaService *services.QAService) *QAHandler {
	return &QAHandler{qaService: qaService}
}

// AnswerQuestion answers a question over all documents or one file.
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid question request", err.Error()))
		return
	}

	answer, err := h.qaService.Ask(c.Request.Context(), req.Question, req.FileID, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, vectordb.ErrModelMismatch):
			middleware.HandleError(c, middleware.NewConflictError(
				"stored vectors were built with a different embedding model", err.Error()))
		case errors.Is(err, models.ErrDocumentNotFound):
			middleware.HandleError(c, middleware.NewNotFoundError("document not found"))
		default:
			middleware.HandleError(c, middleware.NewInternalError("failed to answer question", err))
		}
		return
	}

	respondOK(c, model.QAResponse{
		Question: req.Question,
		Answer:   answer.Answer,
		Sources:  model.ConvertSources(answer.Sources),
	})
}
