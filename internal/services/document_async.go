package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lexidoc/legal-doc-analyzer/pkg/taskqueue"
)

// DocumentTaskHandler processes queued ingestion tasks.
type DocumentTaskHandler struct {
	service *DocumentService
	logger  *logrus.Logger
}

// NewDocumentTaskHandler creates a handler bound to the document service.
func NewDocumentTaskHandler(service *DocumentService, logger *logrus.Logger) *DocumentTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DocumentTaskHandler{
		service: service,
		logger:  logger,
	}
}

// GetTaskTypes lists the task types this handler consumes.
func (h *DocumentTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskProcessDocument}
}

// ProcessTask runs the ingestion pipeline for a queued document.
func (h *DocumentTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	if task.Type != taskqueue.TaskProcessDocument {
		return fmt.Errorf("unexpected task type: %s", task.Type)
	}

	var payload taskqueue.ProcessDocumentPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode task payload: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": payload.DocumentID,
		"file_name":   payload.FileName,
	}).Info("Processing document task")

	if err := h.service.processDocumentSync(ctx, payload.DocumentID, payload.FilePath); err != nil {
		return fmt.Errorf("document processing failed: %w", err)
	}

	return nil
}
