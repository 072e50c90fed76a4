package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// noAnswerText is returned verbatim by the model when the retrieved
// passages do not contain the answer. Callers match on it.
const noAnswerText = "No relevant information found"

// NoAnswerText reports whether an answer is the model's refusal phrase.
func NoAnswerText(answer string) bool {
	return strings.Contains(strings.ToLower(answer), strings.ToLower(noAnswerText))
}

// DefaultRAGTemplate is the legal document analysis prompt.
// Variables:
// {{.Question}} - the user's question
// {{.Context}} - retrieved passages
const DefaultRAGTemplate = `You are a legal document analysis assistant. Answer the question using ONLY the information in the provided context. Do not use outside knowledge and do not speculate.

If the context does not contain the information needed to answer, reply exactly: "No relevant information found".

When you answer, cite the source document and page number for every claim, e.g. (contract.pdf, p. 3).

Context:
{{.Context}}

Question: {{.Question}}

Answer:`

// ClauseExtractionTemplate asks for a specific clause type.
// Variables:
// {{.Topic}} - the clause topic to extract
// {{.Context}} - retrieved passages
const ClauseExtractionTemplate = `You are a legal document analysis assistant. From the context below, extract the clause(s) concerning: {{.Topic}}.

Quote the relevant clause text and note the source document and page number. If the context contains no such clause, reply exactly: "No relevant information found".

Context:
{{.Context}}

Extracted clause:`

// SummaryTemplate produces a document overview.
// Variables:
// {{.Context}} - retrieved passages
const SummaryTemplate = `You are a legal document analysis assistant. Write a concise summary of the document based on the passages below. Cover the parties involved, the subject matter, key obligations, and notable terms. Use ONLY the provided passages.

Passages:
{{.Context}}

Summary:`

// Passage is a retrieved chunk handed to the generator.
type Passage struct {
	ID       string  // chunk ID
	FileID   string  // owning document ID
	FileName string  // original file name
	Page     int     // 1-based page number, 0 if unknown
	Text     string  // chunk text
	Score    float32 // retrieval similarity score
}

// formatContext renders passages with their provenance so the model
// can cite file and page.
func formatContext(passages []Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if p.FileName != "" && p.Page > 0 {
			b.WriteString(fmt.Sprintf("[%d] (%s, p. %d) %s\n\n", i+1, p.FileName, p.Page, p.Text))
		} else if p.FileName != "" {
			b.WriteString(fmt.Sprintf("[%d] (%s) %s\n\n", i+1, p.FileName, p.Text))
		} else {
			b.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, p.Text))
		}
	}
	return b.String()
}

// RAGConfig holds generation settings for retrieval-augmented answers.
type RAGConfig struct {
	Template       string        // prompt template
	MaxTokens      int           // max tokens to generate
	Temperature    float32       // sampling temperature
	Timeout        time.Duration // per-answer timeout
	IncludeSources bool          // attach cited passages to the response
}

// DefaultRAGConfig returns the default RAG configuration.
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Template:       DefaultRAGTemplate,
		MaxTokens:      2048,
		Temperature:    0.3,
		Timeout:        30 * time.Second,
		IncludeSources: true,
	}
}

// RAGService generates answers grounded in retrieved passages.
type RAGService struct {
	Client Client
	config *RAGConfig
	mu     sync.RWMutex
}

// NewRAG creates a new retrieval-augmented generation service.
func NewRAG(client Client, opts ...RAGOption) *RAGService {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &RAGService{
		Client: client,
		config: cfg,
	}
}

// RAGOption configures the RAG service.
type RAGOption func(*RAGConfig)

// WithTemplate sets the prompt template.
func WithTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = template
	}
}

// WithRAGMaxTokens sets the max token count.
func WithRAGMaxTokens(tokens int) RAGOption {
	return func(c *RAGConfig) {
		c.MaxTokens = tokens
	}
}

// WithRAGTemperature sets the sampling temperature.
func WithRAGTemperature(temp float32) RAGOption {
	return func(c *RAGConfig) {
		c.Temperature = temp
	}
}

// WithRAGTimeout sets the per-answer timeout.
func WithRAGTimeout(timeout time.Duration) RAGOption {
	return func(c *RAGConfig) {
		c.Timeout = timeout
	}
}

// WithSources sets whether cited passages are attached to responses.
func WithSources(include bool) RAGOption {
	return func(c *RAGConfig) {
		c.IncludeSources = include
	}
}

// NoAnswerResponse returns the canonical refusal given when retrieval
// produced nothing to ground an answer in.
func NoAnswerResponse() *RAGResponse {
	return &RAGResponse{Answer: noAnswerText}
}

// Answer generates an answer to the question from the given passages.
func (r *RAGService) Answer(ctx context.Context, question string, passages []Passage) (*RAGResponse, error) {
	if question == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	r.mu.RLock()
	cfg := r.config
	template := cfg.Template
	r.mu.RUnlock()

	prompt := renderTemplate(template, map[string]string{
		"Question": question,
		"Context":  formatContext(passages),
	})

	return r.generate(ctx, cfg, prompt, passages)
}

// ExtractClause extracts the clause for a given legal topic from the passages.
func (r *RAGService) ExtractClause(ctx context.Context, topic string, passages []Passage) (*RAGResponse, error) {
	if topic == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "topic cannot be empty")
	}

	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	prompt := renderTemplate(ClauseExtractionTemplate, map[string]string{
		"Topic":   topic,
		"Context": formatContext(passages),
	})

	return r.generate(ctx, cfg, prompt, passages)
}

// Summarize produces a summary of the document from the passages.
func (r *RAGService) Summarize(ctx context.Context, passages []Passage) (*RAGResponse, error) {
	if len(passages) == 0 {
		return &RAGResponse{Answer: noAnswerText}, nil
	}

	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	prompt := renderTemplate(SummaryTemplate, map[string]string{
		"Context": formatContext(passages),
	})

	return r.generate(ctx, cfg, prompt, passages)
}

func (r *RAGService) generate(ctx context.Context, cfg *RAGConfig, prompt string, passages []Passage) (*RAGResponse, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	response, err := r.Client.Generate(
		ctxWithTimeout,
		prompt,
		WithGenerateMaxTokens(cfg.MaxTokens),
		WithGenerateTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	ragResponse := &RAGResponse{
		Answer: response.Text,
	}

	if cfg.IncludeSources && len(passages) > 0 {
		sources := make([]SourceReference, len(passages))
		for i, p := range passages {
			sources[i] = SourceReference{
				ID:       p.ID,
				FileID:   p.FileID,
				FileName: p.FileName,
				Page:     p.Page,
				Content:  p.Text,
				Score:    p.Score,
			}
		}
		ragResponse.Sources = sources
	}

	return ragResponse, nil
}

// renderTemplate does simple placeholder substitution.
func renderTemplate(template string, vars map[string]string) string {
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{."+key+"}}", value)
	}
	return out
}

// SetTemplate replaces the answer prompt template.
func (r *RAGService) SetTemplate(template string) *RAGService {
	r.mu.Lock()
	r.config.Template = template
	r.mu.Unlock()
	return r
}
