package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lexidoc/legal-doc-analyzer/internal/cache"
	"github.com/lexidoc/legal-doc-analyzer/internal/embedding"
	"github.com/lexidoc/legal-doc-analyzer/internal/llm"
	"github.com/lexidoc/legal-doc-analyzer/internal/repository"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
)

// DefaultClauseTopics are the contract clauses extracted when the
// caller does not name specific topics.
var DefaultClauseTopics = []string{
	"payment terms",
	"termination clause",
	"confidentiality",
	"liability",
	"duration of contract",
	"dispute resolution",
}

// ClauseResult is one extracted clause with its provenance.
type ClauseResult struct {
	Topic   string                `json:"topic"`
	Text    string                `json:"text"`
	Found   bool                  `json:"found"`
	Sources []llm.SourceReference `json:"sources,omitempty"`
}

// AnalysisService extracts key clauses and produces document summaries.
type AnalysisService struct {
	embedder     embedding.Client
	vectorDB     vectordb.Repository
	rag          *llm.RAGService
	repo         repository.DocumentRepository
	cache        cache.Cache
	cacheTTL     time.Duration
	searchLimit  int
	minScore     float32
	summaryLimit int
	logger       *logrus.Logger
}

// AnalysisOption configures an AnalysisService.
type AnalysisOption func(*AnalysisService)

// NewAnalysisService creates an analysis service.
func NewAnalysisService(
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	rag *llm.RAGService,
	repo repository.DocumentRepository,
	analysisCache cache.Cache,
	opts ...AnalysisOption,
) *AnalysisService {
	service := &AnalysisService{
		embedder:     embedder,
		vectorDB:     vectorDB,
		rag:          rag,
		repo:         repo,
		cache:        analysisCache,
		cacheTTL:     24 * time.Hour,
		searchLimit:  3,
		minScore:     0.3,
		summaryLimit: 10,
		logger:       logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithAnalysisCacheTTL sets how long analysis results stay cached.
func WithAnalysisCacheTTL(ttl time.Duration) AnalysisOption {
	return func(s *AnalysisService) {
		s.cacheTTL = ttl
	}
}

// WithClauseSearchLimit sets how many chunks back each clause extraction.
func WithClauseSearchLimit(limit int) AnalysisOption {
	return func(s *AnalysisService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithAnalysisMinScore sets the similarity floor for clause retrieval.
func WithAnalysisMinScore(score float32) AnalysisOption {
	return func(s *AnalysisService) {
		s.minScore = score
	}
}

// WithSummaryChunkLimit sets how many chunks feed a summary.
func WithSummaryChunkLimit(limit int) AnalysisOption {
	return func(s *AnalysisService) {
		if limit > 0 {
			s.summaryLimit = limit
		}
	}
}

// WithAnalysisLogger sets the logger.
func WithAnalysisLogger(logger *logrus.Logger) AnalysisOption {
	return func(s *AnalysisService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ExtractKeyClauses locates and extracts the standard contract clauses
// from one document. Topics without a matching passage are reported as
// not found rather than dropped.
func (s *AnalysisService) ExtractKeyClauses(ctx context.Context, fileID string) ([]ClauseResult, error) {
	return s.ExtractClauses(ctx, fileID, DefaultClauseTopics)
}

// ExtractClauses extracts the given clause topics from one document.
func (s *AnalysisService) ExtractClauses(ctx context.Context, fileID string, topics []string) ([]ClauseResult, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID cannot be empty")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("topics cannot be empty")
	}

	if err := s.checkModel(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByID(fileID); err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	cacheKey := cache.AnswerCacheKey(s.embedder.Name(), "clauses:"+fileID, fmt.Sprintf("%v", topics))
	if cached, found, err := s.cache.Get(cacheKey); err == nil && found {
		var results []ClauseResult
		if err := json.Unmarshal([]byte(cached), &results); err == nil {
			return results, nil
		}
	}

	results := make([]ClauseResult, 0, len(topics))
	for _, topic := range topics {
		result, err := s.extractClause(ctx, fileID, topic)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %q: %w", topic, err)
		}
		results = append(results, result)
	}

	if data, err := json.Marshal(results); err == nil {
		if err := s.cache.Set(cacheKey, string(data), s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache clause results")
		}
	}

	return results, nil
}

func (s *AnalysisService) extractClause(ctx context.Context, fileID string, topic string) (ClauseResult, error) {
	vector, err := s.embedder.Embed(ctx, topic)
	if err != nil {
		return ClauseResult{}, fmt.Errorf("failed to embed topic: %w", err)
	}

	results, err := s.vectorDB.Search(vector, vectordb.SearchFilter{
		FileIDs:    []string{fileID},
		MinScore:   s.minScore,
		MaxResults: s.searchLimit,
	})
	if err != nil {
		return ClauseResult{}, fmt.Errorf("search failed: %w", err)
	}

	passages := resultsToPassages(results, s.minScore)
	if len(passages) == 0 {
		return ClauseResult{Topic: topic, Found: false}, nil
	}

	response, err := s.rag.ExtractClause(ctx, topic, passages)
	if err != nil {
		return ClauseResult{}, err
	}

	if llm.NoAnswerText(response.Answer) {
		return ClauseResult{Topic: topic, Found: false}, nil
	}

	return ClauseResult{
		Topic:   topic,
		Text:    response.Answer,
		Found:   true,
		Sources: response.Sources,
	}, nil
}

// Summarize produces a summary of one document from its leading chunks.
// Summaries follow document order, not similarity, so the opening
// sections are always represented.
func (s *AnalysisService) Summarize(ctx context.Context, fileID string) (*llm.RAGResponse, error) {
	if fileID == "" {
		return nil, fmt.Errorf("fileID cannot be empty")
	}

	if _, err := s.repo.GetByID(fileID); err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	cacheKey := cache.AnswerCacheKey(s.embedder.Name(), "summary:"+fileID, "summary")
	if cached, found, err := s.cache.Get(cacheKey); err == nil && found {
		var response llm.RAGResponse
		if err := json.Unmarshal([]byte(cached), &response); err == nil {
			return &response, nil
		}
	}

	segments, err := s.repo.GetSegments(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document segments: %w", err)
	}

	doc, err := s.repo.GetByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	passages := make([]llm.Passage, 0, s.summaryLimit)
	for _, segment := range segments {
		if len(passages) >= s.summaryLimit {
			break
		}
		passages = append(passages, llm.Passage{
			ID:       segment.SegmentID,
			FileID:   segment.DocumentID,
			FileName: doc.FileName,
			Page:     segment.Page,
			Text:     segment.Text,
		})
	}

	response, err := s.rag.Summarize(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	if data, err := json.Marshal(response); err == nil {
		if err := s.cache.Set(cacheKey, string(data), s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache summary")
		}
	}

	return response, nil
}

// checkModel refuses analysis when the configured embedder differs from
// the model the collection was built with.
func (s *AnalysisService) checkModel() error {
	if stored := s.vectorDB.EmbeddingModel(); stored != "" && stored != s.embedder.Name() {
		return fmt.Errorf("query model %q, collection model %q: %w",
			s.embedder.Name(), stored, vectordb.ErrModelMismatch)
	}
	return nil
}
