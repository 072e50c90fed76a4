package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "llama3"
)

// OllamaClient generates answers with a local Ollama server.
type OllamaClient struct {
	model       string
	llm         *ollama.LLM
	maxTokens   int
	temperature float32
	topP        float32
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaEndpoint
	}

	model := cfg.Model
	if model == "" || model == ModelGeminiFlash {
		model = defaultOllamaModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest,
			fmt.Sprintf("failed to initialize ollama client: %v", err))
	}

	return &OllamaClient{
		model:       model,
		llm:         llm,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name returns the model name.
func (c *OllamaClient) Name() string {
	return c.model
}

// Generate produces an answer for a single prompt.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	var chatOpts []ChatOption
	opts := &GenerateOptions{}
	for _, opt := range options {
		opt(opts)
	}
	if opts.MaxTokens != nil {
		chatOpts = append(chatOpts, WithChatMaxTokens(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		chatOpts = append(chatOpts, WithChatTemperature(*opts.Temperature))
	}
	if opts.TopP != nil {
		chatOpts = append(chatOpts, WithChatTopP(*opts.TopP))
	}

	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, chatOpts...)
}

// Chat runs a multi-turn conversation.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := schema.ChatMessageTypeHuman
		switch msg.Role {
		case RoleSystem:
			role = schema.ChatMessageTypeSystem
		case RoleAssistant:
			role = schema.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextContent{Text: msg.Content}},
		})
	}

	callOpts := []llms.CallOption{}
	if opts.MaxTokens != nil {
		callOpts = append(callOpts, llms.WithMaxTokens(*opts.MaxTokens))
	} else if c.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(c.maxTokens))
	}
	if opts.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*opts.Temperature)))
	} else if c.temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(c.temperature)))
	}
	if opts.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(float64(*opts.TopP)))
	} else if c.topP > 0 {
		callOpts = append(callOpts, llms.WithTopP(float64(c.topP)))
	}

	resp, err := c.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("ollama generation failed: %v", err))
	}
	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeServerError, "empty response from ollama")
	}

	text := resp.Choices[0].Content
	result := &Response{
		Text:       text,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}
	result.Messages = append(result.Messages, messages...)
	result.Messages = append(result.Messages, Message{Role: RoleAssistant, Content: text})

	return result, nil
}

func init() {
	RegisterClient("ollama", NewOllamaClient)
}
