package llm

import (
	"context"
	"time"
)

// Client is the interface implemented by language model backends.
type Client interface {
	// Generate produces an answer for a single prompt.
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error)

	// Chat runs a multi-turn conversation.
	Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error)

	// Name returns the model name.
	Name() string
}

// Config holds LLM client settings.
type Config struct {
	APIKey      string        // provider API key
	BaseURL     string        // API base URL override
	Model       string        // model name
	Timeout     time.Duration // request timeout
	MaxRetries  int           // max retry attempts
	MaxTokens   int           // max tokens to generate
	Temperature float32       // sampling temperature (0.0-2.0)
	TopP        float32       // nucleus sampling threshold (0.0-1.0)
}

// DefaultConfig returns the default LLM configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:       ModelGeminiFlash,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		MaxTokens:   2048,
		Temperature: 0.3,
		TopP:        0.9,
	}
}

// Option configures an LLM client.
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

// WithMaxTokens sets the maximum number of generated tokens.
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithTopP sets the nucleus sampling threshold.
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
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

// GenerateOption configures a single Generate call.
type GenerateOption func(*GenerateOptions)

// GenerateOptions is the per-call option set for Generate.
type GenerateOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
	TopK        *int
}

// WithGenerateMaxTokens sets the call's max token count.
func WithGenerateMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = &tokens
	}
}

// WithGenerateTemperature sets the call's sampling temperature.
func WithGenerateTemperature(temp float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = &temp
	}
}

// WithGenerateTopP sets the call's nucleus sampling threshold.
func WithGenerateTopP(topP float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = &topP
	}
}

// WithGenerateTopK sets the call's candidate set size.
func WithGenerateTopK(topK int) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopK = &topK
	}
}

// ChatOption configures a single Chat call.
type ChatOption func(*ChatOptions)

// ChatOptions is the per-call option set for Chat.
type ChatOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
	TopK        *int
}

// WithChatMaxTokens sets the call's max token count.
func WithChatMaxTokens(tokens int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = &tokens
	}
}

// WithChatTemperature sets the call's sampling temperature.
func WithChatTemperature(temp float32) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &temp
	}
}

// WithChatTopP sets the call's nucleus sampling threshold.
func WithChatTopP(topP float32) ChatOption {
	return func(o *ChatOptions) {
		o.TopP = &topP
	}
}

// WithChatTopK sets the call's candidate set size.
func WithChatTopK(topK int) ChatOption {
	return func(o *ChatOptions) {
		o.TopK = &topK
	}
}

// Factory builds an LLM client.
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient registers an LLM client factory under a provider name.
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient creates an LLM client by provider name.
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}
