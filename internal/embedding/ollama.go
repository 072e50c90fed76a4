package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "nomic-embed-text"
)

// OllamaClient embeds texts against a local Ollama server.
// Useful for development without an API key.
type OllamaClient struct {
	model    string
	embedder *embeddings.EmbedderImpl
}

// NewOllamaClient creates a new Ollama embedding client.
func NewOllamaClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(endpoint),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("failed to initialize ollama client: %v", err))
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("failed to create embedder: %v", err))
	}

	return &OllamaClient{
		model:    model,
		embedder: embedder,
	}, nil
}

// Name returns the model identifier.
func (c *OllamaClient) Name() string {
	return c.model
}

// Embed generates the vector for a single text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeNetworkError,
			fmt.Sprintf("ollama embedding failed: %v", err))
	}
	return vector, nil
}

// EmbedBatch generates vectors for multiple texts.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeNetworkError,
			fmt.Sprintf("ollama embedding failed: %v", err))
	}
	if len(vectors) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	return vectors, nil
}

func init() {
	RegisterClient("ollama", NewOllamaClient)
}
