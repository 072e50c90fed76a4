package embedding

import (
	"context"
	"time"
)

// Client converts text into vector representations.
// The same client (same model) must be used on the ingestion and query
// paths; the model name returned by Name is stored with the vector
// collection and checked at query time.
type Client interface {
	// Embed generates the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the model identifier.
	Name() string
}

// Config holds embedding client settings.
type Config struct {
	APIKey     string        // provider API key
	BaseURL    string        // API base URL override
	Model      string        // model name
	Timeout    time.Duration // request timeout
	MaxRetries int           // max retry attempts
	Dimensions int           // vector dimensionality
	BatchSize  int           // texts per request
}

// Option configures an embedding client.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithDimensions sets the vector dimensionality.
func WithDimensions(dimensions int) Option {
	return func(c *Config) {
		c.Dimensions = dimensions
	}
}

// WithBatchSize sets the batch size.
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// DefaultConfig returns the default embedding configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:      "embedding-001",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		Dimensions: 768,
		BatchSize:  16,
	}
}

// NewConfig creates a configuration and applies options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Factory builds an embedding client.
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient registers an embedding client factory under a provider name.
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient creates an embedding client by provider name.
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewEmbeddingError(
			ErrCodeInvalidRequest,
			"embedding client type not registered: "+name)
	}
	return factory(opts...)
}
