package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// Google Generative Language API base
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiClient calls the Google Generative Language API.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	maxRetries  int
	maxTokens   int
	temperature float32
	topP        float32
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiEndpoint
	}

	return &GeminiClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name returns the model name.
func (c *GeminiClient) Name() string {
	return c.model
}

// Generate produces an answer for a single prompt.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	messages := []Message{{Role: RoleUser, Content: prompt}}

	// map generate options onto chat options
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
	if opts.TopK != nil {
		chatOpts = append(chatOpts, WithChatTopK(*opts.TopK))
	}

	return c.Chat(ctx, messages, chatOpts...)
}

// Chat runs a multi-turn conversation.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	genCfg := &GeminiGenerationConfig{}
	if opts.MaxTokens != nil {
		genCfg.MaxOutputTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		genCfg.MaxOutputTokens = &maxTokens
	}
	if opts.Temperature != nil {
		genCfg.Temperature = opts.Temperature
	} else if c.temperature > 0 {
		temp := c.temperature
		genCfg.Temperature = &temp
	}
	if opts.TopP != nil {
		genCfg.TopP = opts.TopP
	} else if c.topP > 0 {
		topP := c.topP
		genCfg.TopP = &topP
	}
	if opts.TopK != nil {
		genCfg.TopK = opts.TopK
	}

	req := &GeminiRequest{
		GenerationConfig: genCfg,
	}

	// the API keeps system text in a dedicated field and only knows
	// "user" and "model" roles for the conversation itself
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			req.SystemInstruction = &GeminiContent{
				Parts: []GeminiPart{{Text: msg.Content}},
			}
		case RoleAssistant:
			req.Contents = append(req.Contents, GeminiContent{
				Role:  "model",
				Parts: []GeminiPart{{Text: msg.Content}},
			})
		default:
			req.Contents = append(req.Contents, GeminiContent{
				Role:  "user",
				Parts: []GeminiPart{{Text: msg.Content}},
			})
		}
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	return c.processResponse(resp, messages)
}

// sendRequest posts the request with retry on server errors.
func (c *GeminiClient) sendRequest(ctx context.Context, req *GeminiRequest) (*GeminiResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, lastErr = c.httpClient.Do(httpReq)
		if lastErr == nil && resp.StatusCode < 500 {
			break
		}
		if resp != nil {
			resp.Body.Close()
			resp = nil
		}
	}

	if lastErr != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewLLMError(ErrCodeRateLimited, ErrMsgRateLimited)
	case resp.StatusCode != http.StatusOK:
		var errResp GeminiResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != nil {
			return nil, NewLLMError(ErrCodeServerError,
				fmt.Sprintf("API error: %s (%s)", errResp.Error.Message, errResp.Error.Status))
		}
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}

	return &geminiResp, nil
}

// processResponse converts the API response into the unified format.
func (c *GeminiClient) processResponse(resp *GeminiResponse, history []Message) (*Response, error) {
	if len(resp.Candidates) == 0 {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == finishReasonSafety {
		return nil, NewLLMError(ErrCodeContentFilter, ErrMsgContentFilter)
	}

	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}
	if text == "" {
		return nil, NewLLMError(ErrCodeServerError, "empty candidate content")
	}

	result := &Response{
		Text:       text,
		ModelName:  c.model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}
	result.Messages = append(result.Messages, history...)
	result.Messages = append(result.Messages, Message{Role: RoleAssistant, Content: text})

	return result, nil
}

// register the gemini client at package load
func init() {
	RegisterClient("gemini", NewGeminiClient)
}
