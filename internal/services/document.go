package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lexidoc/legal-doc-analyzer/internal/document"
	"github.com/lexidoc/legal-doc-analyzer/internal/embedding"
	"github.com/lexidoc/legal-doc-analyzer/internal/models"
	"github.com/lexidoc/legal-doc-analyzer/internal/repository"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
	"github.com/lexidoc/legal-doc-analyzer/pkg/storage"
	"github.com/lexidoc/legal-doc-analyzer/pkg/taskqueue"
)

// DocumentService runs the ingestion pipeline: extract, chunk, embed, store.
type DocumentService struct {
	storage       storage.Storage
	splitter      document.Splitter
	embedder      embedding.Client
	vectorDB      vectordb.Repository
	repo          repository.DocumentRepository
	statusManager *DocumentStatusManager
	taskQueue     taskqueue.Queue
	asyncEnabled  bool
	batchSize     int
	timeout       time.Duration
	logger        *logrus.Logger
}

// DocumentOption configures a DocumentService.
type DocumentOption func(*DocumentService)

// NewDocumentService creates a document service.
func NewDocumentService(
	store storage.Storage,
	splitter document.Splitter,
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage:      store,
		splitter:     splitter,
		embedder:     embedder,
		vectorDB:     vectorDB,
		batchSize:    16,
		timeout:      time.Minute * 5,
		logger:       logrus.New(),
		asyncEnabled: false,
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(size int) DocumentOption {
	return func(s *DocumentService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithTimeout sets the processing deadline per document.
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		s.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDocumentRepository sets the metadata repository.
func WithDocumentRepository(repo repository.DocumentRepository) DocumentOption {
	return func(s *DocumentService) {
		s.repo = repo
	}
}

// WithStatusManager sets the status manager.
func WithStatusManager(manager *DocumentStatusManager) DocumentOption {
	return func(s *DocumentService) {
		s.statusManager = manager
	}
}

// WithTaskQueue sets the task queue and enables async processing.
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing toggles async processing.
func WithAsyncProcessing(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// Init fills in default dependencies that were not provided.
func (s *DocumentService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewDocumentRepository()
	}
	if s.statusManager == nil {
		s.statusManager = NewDocumentStatusManager(s.repo, s.logger)
	}
	return nil
}

// UploadDocument stores the file and registers it for processing.
// It returns the new document's ID.
func (s *DocumentService) UploadDocument(ctx context.Context, reader io.Reader, filename string) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	if filename == "" {
		return "", errors.New("filename cannot be empty")
	}
	if document.DetectContentType(filename) == document.Unknown {
		return "", document.ErrUnsupportedType
	}

	info, err := s.storage.Save(reader, filename)
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	if err := s.statusManager.MarkAsUploaded(ctx, info.ID, filename, info.Path, info.Size); err != nil {
		// The file is stored but untracked; remove it to stay consistent.
		if delErr := s.storage.Delete(info.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("file_id", info.ID).Warn("Failed to remove orphaned file")
		}
		return "", fmt.Errorf("failed to register document: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":  info.ID,
		"filename": filename,
		"size":     info.Size,
	}).Info("Document uploaded")

	return info.ID, nil
}

// ProcessDocument runs the ingestion pipeline for an uploaded document.
// With a task queue configured the work is enqueued and this returns
// immediately; otherwise it processes inline.
func (s *DocumentService) ProcessDocument(ctx context.Context, fileID string, filePath string) error {
	if err := s.Init(); err != nil {
		return err
	}

	if fileID == "" {
		return errors.New("fileID cannot be empty")
	}
	if filePath == "" {
		return errors.New("filePath cannot be empty")
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":   fileID,
		"file_path": filePath,
	}).Info("Starting document processing")

	if s.asyncEnabled && s.taskQueue != nil {
		return s.processDocumentAsync(ctx, fileID, filePath)
	}

	return s.processDocumentSync(ctx, fileID, filePath)
}

// processDocumentAsync enqueues the pipeline and returns without waiting.
func (s *DocumentService) processDocumentAsync(ctx context.Context, fileID string, filePath string) error {
	fileName := filepath.Base(filePath)

	payload := taskqueue.ProcessDocumentPayload{
		DocumentID: fileID,
		FilePath:   filePath,
		FileName:   fileName,
		FileType:   fileExt(fileName),
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskProcessDocument, fileID, payload)
	if err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to enqueue processing task: %v", err))
		return fmt.Errorf("failed to enqueue processing task: %w", err)
	}

	if err := s.statusManager.SetTaskID(ctx, fileID, taskID); err != nil {
		s.logger.WithError(err).WithField("file_id", fileID).Warn("Failed to record task ID")
	}

	s.logger.WithFields(logrus.Fields{
		"file_id": fileID,
		"task_id": taskID,
	}).Info("Document processing task enqueued")

	return nil
}

// processDocumentSync runs the full pipeline inline.
func (s *DocumentService) processDocumentSync(ctx context.Context, fileID string, filePath string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.statusManager.MarkAsProcessing(ctx, fileID); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as processing")
	}

	if err := s.statusManager.UpdateStage(ctx, fileID, models.StageExtracting); err != nil {
		s.logger.WithError(err).Warn("Failed to update processing stage")
	}

	// Extract per-page text so chunks keep their page provenance.
	pages, err := s.parsePages(fileID, filePath)
	if err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to parse document: %v", err))
		return fmt.Errorf("failed to parse document: %w", err)
	}

	if err := s.statusManager.UpdateStage(ctx, fileID, models.StageChunking); err != nil {
		s.logger.WithError(err).Warn("Failed to update processing stage")
	}

	segments, err := s.splitter.SplitPages(pages)
	if err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to split content: %v", err))
		return fmt.Errorf("failed to split content: %w", err)
	}

	if err := s.statusManager.UpdateProgress(ctx, fileID, 20); err != nil {
		s.logger.WithError(err).Warn("Failed to update document progress")
	}
	if err := s.statusManager.UpdateStage(ctx, fileID, models.StageVectorizing); err != nil {
		s.logger.WithError(err).Warn("Failed to update processing stage")
	}

	if err := s.processBatches(ctx, fileID, filePath, segments); err != nil {
		s.failDocument(ctx, fileID, fmt.Sprintf("failed to process batches: %v", err))
		return fmt.Errorf("failed to process batches: %w", err)
	}

	if err := s.statusManager.MarkAsCompleted(ctx, fileID, len(segments), len(pages)); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as completed")
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":       fileID,
		"segment_count": len(segments),
		"page_count":    len(pages),
	}).Info("Document processing completed")

	return nil
}

// parsePages extracts per-page text for the stored file.
// The file content is fetched from storage and staged in a temp file,
// which keeps the parsing path identical for local and object storage.
func (s *DocumentService) parsePages(fileID string, filePath string) ([]string, error) {
	reader, err := s.storage.Get(fileID)
	if err != nil {
		// Fall back to the raw path for callers that pass one directly.
		if _, statErr := os.Stat(filePath); statErr == nil {
			return s.parsePagesFromPath(filePath)
		}
		return nil, fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "ingest-*"+filepath.Ext(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to stage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to stage file: %w", err)
	}

	return s.parsePagesFromPath(tmpPath)
}

func (s *DocumentService) parsePagesFromPath(path string) ([]string, error) {
	parser, err := document.ParserFactory(path)
	if err != nil {
		return nil, err
	}
	return parser.ParsePages(path)
}

// processBatches embeds chunks in batches and stores vectors and segments.
func (s *DocumentService) processBatches(ctx context.Context, fileID string, filePath string, segments []document.Content) error {
	fileName := filepath.Base(filePath)

	if len(segments) == 0 {
		return nil
	}

	totalBatches := (len(segments) + s.batchSize - 1) / s.batchSize
	processedBatches := 0

	for i := 0; i < len(segments); i += s.batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := i + s.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[i:end]

		texts := make([]string, len(batch))
		for j, segment := range batch {
			texts[j] = segment.Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}

		docs := make([]vectordb.Document, len(batch))
		dbSegments := make([]*models.DocumentSegment, len(batch))

		for j := range batch {
			segmentID := fmt.Sprintf("%s_%d", fileID, batch[j].Index)

			docs[j] = vectordb.Document{
				ID:        segmentID,
				FileID:    fileID,
				FileName:  fileName,
				Position:  batch[j].Index,
				Page:      batch[j].Page,
				Text:      batch[j].Text,
				Vector:    vectors[j],
				CreatedAt: time.Now(),
			}

			dbSegments[j] = &models.DocumentSegment{
				DocumentID: fileID,
				SegmentID:  segmentID,
				Position:   batch[j].Index,
				Page:       batch[j].Page,
				Text:       batch[j].Text,
			}
		}

		if err := s.vectorDB.AddBatch(docs); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}

		if err := s.repo.SaveSegments(dbSegments); err != nil {
			s.logger.WithError(err).Error("Failed to save segments to database")
		}

		processedBatches++
		// Embedding and storage cover the 20% to 90% progress range.
		progress := 20 + int(float64(processedBatches)/float64(totalBatches)*70)
		if err := s.statusManager.UpdateProgress(ctx, fileID, progress); err != nil {
			s.logger.WithError(err).Warn("Failed to update document progress")
		}
	}

	return nil
}

// DeleteDocument removes a document's vectors, file, chunks and metadata.
func (s *DocumentService) DeleteDocument(ctx context.Context, fileID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithField("file_id", fileID).Info("Deleting document")

	if err := s.vectorDB.DeleteByFileID(fileID); err != nil {
		s.logger.WithError(err).Error("Failed to delete document vectors")
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	if err := s.storage.Delete(fileID); err != nil {
		// The file may already be gone; metadata cleanup still proceeds.
		s.logger.WithError(err).Warn("Failed to delete file from storage")
	}

	if err := s.statusManager.DeleteDocument(ctx, fileID); err != nil {
		s.logger.WithError(err).Error("Failed to delete document record")
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	s.logger.WithField("file_id", fileID).Info("Document deleted")
	return nil
}

// ClearAll wipes every document: vectors, stored files and metadata.
func (s *DocumentService) ClearAll(ctx context.Context) error {
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.Warn("Clearing all documents")

	if err := s.vectorDB.DeleteAll(); err != nil {
		return fmt.Errorf("failed to clear vector store: %w", err)
	}

	files, err := s.storage.List()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list stored files")
	} else {
		for _, f := range files {
			if err := s.storage.Delete(f.ID); err != nil {
				s.logger.WithError(err).WithField("file_id", f.ID).Warn("Failed to delete stored file")
			}
		}
	}

	if err := s.repo.DeleteAll(); err != nil {
		return fmt.Errorf("failed to clear document records: %w", err)
	}

	s.logger.Info("All documents cleared")
	return nil
}

// GetDocumentInfo returns the document's metadata for API responses.
func (s *DocumentService) GetDocumentInfo(ctx context.Context, fileID string) (map[string]interface{}, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	doc, err := s.statusManager.GetDocument(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	info := map[string]interface{}{
		"file_id":       doc.ID,
		"filename":      doc.FileName,
		"status":        doc.Status,
		"created_at":    doc.UploadedAt.Format(time.RFC3339),
		"updated_at":    doc.UpdatedAt.Format(time.RFC3339),
		"size":          doc.FileSize,
		"progress":      doc.Progress,
		"segment_count": doc.SegmentCount,
		"page_count":    doc.PageCount,
	}

	if doc.Error != "" {
		info["error"] = doc.Error
	}
	if doc.ProcessedAt != nil {
		info["processed_at"] = doc.ProcessedAt.Format(time.RFC3339)
	}
	if doc.Tags != "" {
		info["tags"] = doc.Tags
	}
	if doc.CurrentStage != "" {
		info["stage"] = doc.CurrentStage
	}

	if doc.CurrentTaskID != "" && s.taskQueue != nil {
		task, err := s.taskQueue.GetTask(ctx, doc.CurrentTaskID)
		if err == nil {
			info["task_id"] = task.ID
			info["task_status"] = task.Status
			if task.Error != "" {
				info["task_error"] = task.Error
			}
		}
	}

	return info, nil
}

// GetDocumentStatus returns a document's processing state.
func (s *DocumentService) GetDocumentStatus(ctx context.Context, fileID string) (models.DocumentStatus, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	return s.statusManager.GetStatus(ctx, fileID)
}

// WaitForDocumentProcessing blocks until the document's pipeline finishes.
func (s *DocumentService) WaitForDocumentProcessing(ctx context.Context, fileID string, timeout time.Duration) error {
	if err := s.Init(); err != nil {
		return err
	}

	if !s.asyncEnabled || s.taskQueue == nil {
		status, err := s.statusManager.GetStatus(ctx, fileID)
		if err != nil {
			return err
		}
		if status == models.DocStatusFailed {
			return errors.New("document processing failed")
		}
		if status != models.DocStatusCompleted {
			return errors.New("document not processed")
		}
		return nil
	}

	doc, err := s.statusManager.GetDocument(ctx, fileID)
	if err != nil {
		return err
	}
	if doc.CurrentTaskID == "" {
		return fmt.Errorf("no processing task found for document %s", fileID)
	}

	if _, err := s.taskQueue.WaitForTask(ctx, doc.CurrentTaskID, timeout); err != nil {
		return fmt.Errorf("failed to wait for document processing: %w", err)
	}

	status, err := s.statusManager.GetStatus(ctx, fileID)
	if err != nil {
		return err
	}
	if status == models.DocStatusFailed {
		return errors.New("document processing failed")
	}
	if status != models.DocStatusCompleted {
		return errors.New("document processing incomplete")
	}
	return nil
}

// CountDocumentSegments counts a document's stored chunks.
func (s *DocumentService) CountDocumentSegments(ctx context.Context, fileID string) (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}
	return s.repo.CountSegments(fileID)
}

// ListDocuments returns documents with paging and filters.
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	if err := s.Init(); err != nil {
		return nil, 0, err
	}
	return s.statusManager.ListDocuments(ctx, offset, limit, filters)
}

// UpdateDocumentTags replaces a document's tags.
func (s *DocumentService) UpdateDocumentTags(ctx context.Context, fileID string, tags string) error {
	if err := s.Init(); err != nil {
		return err
	}

	doc, err := s.statusManager.GetDocument(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	doc.Tags = tags
	return s.repo.Update(doc)
}

// failDocument marks the document as failed, logging but not returning errors.
func (s *DocumentService) failDocument(ctx context.Context, fileID string, errorMsg string) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark document as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, fileID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"file_id": fileID,
			"error":   err,
		}).Error("Failed to mark document as failed")
	}
}

// GetStatusManager returns the status manager.
func (s *DocumentService) GetStatusManager() *DocumentStatusManager {
	return s.statusManager
}
