package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lexidoc/legal-doc-analyzer/internal/cache"
	"github.com/lexidoc/legal-doc-analyzer/internal/embedding"
	"github.com/lexidoc/legal-doc-analyzer/internal/llm"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
)

// allDocumentsScope is the cache scope for questions not bound to one file.
const allDocumentsScope = "all"

// QAService answers questions by retrieving relevant chunks and
// generating a grounded answer.
type QAService struct {
	embedder    embedding.Client
	vectorDB    vectordb.Repository
	rag         *llm.RAGService
	cache       cache.Cache
	cacheTTL    time.Duration
	searchLimit int
	minScore    float32
	logger      *logrus.Logger
}

// QAOption configures a QAService.
type QAOption func(*QAService)

// NewQAService creates a question answering service.
func NewQAService(
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	rag *llm.RAGService,
	answerCache cache.Cache,
	opts ...QAOption,
) *QAService {
	service := &QAService{
		embedder:    embedder,
		vectorDB:    vectorDB,
		rag:         rag,
		cache:       answerCache,
		cacheTTL:    24 * time.Hour,
		searchLimit: 5,
		minScore:    0.3,
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithCacheTTL sets how long answers stay cached.
func WithCacheTTL(ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.cacheTTL = ttl
	}
}

// WithSearchLimit sets how many chunks are retrieved per question.
func WithSearchLimit(limit int) QAOption {
	return func(s *QAService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithMinScore sets the similarity floor for retrieved chunks.
func WithMinScore(score float32) QAOption {
	return func(s *QAService) {
		s.minScore = score
	}
}

// WithQALogger sets the logger.
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Answer answers a question against every ingested document.
func (s *QAService) Answer(ctx context.Context, question string) (*llm.RAGResponse, error) {
	return s.Ask(ctx, question, "", 0)
}

// AnswerWithFile answers a question against a single document.
func (s *QAService) AnswerWithFile(ctx context.Context, question string, fileID string) (*llm.RAGResponse, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID cannot be empty")
	}
	return s.Ask(ctx, question, fileID, 0)
}

// Ask answers a question with optional file scoping and a per-question
// retrieval limit. A zero topK uses the configured default.
func (s *QAService) Ask(ctx context.Context, question string, fileID string, topK int) (*llm.RAGResponse, error) {
	limit := s.searchLimit
	if topK > 0 {
		limit = topK
	}

	scope := allDocumentsScope
	filter := vectordb.SearchFilter{
		MinScore:   s.minScore,
		MaxResults: limit,
	}
	if fileID != "" {
		scope = fileID
		filter.FileIDs = []string{fileID}
	}
	// A custom limit gets its own cache scope.
	if topK > 0 {
		scope = fmt.Sprintf("%s:k=%d", scope, topK)
	}

	return s.answer(ctx, question, scope, filter)
}

// AnswerWithMetadata answers a question against documents matching the
// given metadata filters.
func (s *QAService) AnswerWithMetadata(ctx context.Context, question string, metadata map[string]interface{}) (*llm.RAGResponse, error) {
	return s.answer(ctx, question, metadataScope(metadata), vectordb.SearchFilter{
		Metadata:   metadata,
		MinScore:   s.minScore,
		MaxResults: s.searchLimit,
	})
}

func (s *QAService) answer(ctx context.Context, question string, scope string, filter vectordb.SearchFilter) (*llm.RAGResponse, error) {
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	// Vectors from different models are not comparable. Refuse the
	// query instead of returning nonsense.
	if stored := s.vectorDB.EmbeddingModel(); stored != "" && stored != s.embedder.Name() {
		return nil, fmt.Errorf("query model %q, collection model %q: %w",
			s.embedder.Name(), stored, vectordb.ErrModelMismatch)
	}

	cacheKey := cache.AnswerCacheKey(s.embedder.Name(), scope, question)
	if cached, found, err := s.cache.Get(cacheKey); err == nil && found {
		var response llm.RAGResponse
		if err := json.Unmarshal([]byte(cached), &response); err == nil {
			s.logger.WithField("scope", scope).Debug("Answer served from cache")
			return &response, nil
		}
		// A corrupted entry is regenerated below.
		s.logger.WithError(err).Warn("Failed to decode cached answer")
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	results, err := s.vectorDB.Search(vector, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	passages := resultsToPassages(results, s.minScore)
	if len(passages) == 0 {
		response := llm.NoAnswerResponse()
		s.cacheResponse(cacheKey, response)
		return response, nil
	}

	response, err := s.rag.Answer(ctx, question, passages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	s.cacheResponse(cacheKey, response)
	return response, nil
}

// cacheResponse stores the answer, ignoring cache failures.
func (s *QAService) cacheResponse(key string, response *llm.RAGResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.cache.Set(key, string(data), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache answer")
	}
}

// ClearCache drops every cached answer.
func (s *QAService) ClearCache() error {
	return s.cache.Clear()
}

// resultsToPassages converts search results above the score floor into
// generator passages.
func resultsToPassages(results []vectordb.SearchResult, minScore float32) []llm.Passage {
	passages := make([]llm.Passage, 0, len(results))
	for _, result := range results {
		if result.Score < minScore {
			continue
		}
		passages = append(passages, llm.Passage{
			ID:       result.Document.ID,
			FileID:   result.Document.FileID,
			FileName: result.Document.FileName,
			Page:     result.Document.Page,
			Text:     result.Document.Text,
			Score:    result.Score,
		})
	}
	return passages
}

// metadataScope derives a stable cache scope from metadata filters.
func metadataScope(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return allDocumentsScope
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scope := "meta"
	for _, k := range keys {
		scope += fmt.Sprintf(":%s=%v", k, metadata[k])
	}
	return scope
}
