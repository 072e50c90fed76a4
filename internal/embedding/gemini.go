package embedding

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

	// default embedding model
	defaultGeminiModel = "embedding-001"

	// the batchEmbedContents API accepts at most 100 requests per call
	geminiMaxBatch = 100
)

// geminiEmbedRequest is the payload for a single embedContent call.
type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiBatchRequest is the payload for batchEmbedContents.
type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

// GeminiClient calls the Google Generative Language embedding API.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	maxRetries int
	dimensions int
}

// NewGeminiClient creates a new Gemini embedding client.
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		dimensions: cfg.Dimensions,
	}, nil
}

// Name returns the model identifier.
func (c *GeminiClient) Name() string {
	return c.model
}

// Embed generates the vector for a single text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	reqData := geminiEmbedRequest{
		Model:   "models/" + c.model,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}

	var resp struct {
		Embedding geminiEmbedding `json:"embedding"`
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.endpoint, c.model)
	if err := c.sendRequest(ctx, url, reqData, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, NewEmbeddingError(ErrCodeServerError, "no embedding vector returned")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch generates vectors for multiple texts via batchEmbedContents.
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > geminiMaxBatch {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("batch size %d exceeds API limit of %d", len(texts), geminiMaxBatch))
	}

	reqData := geminiBatchRequest{
		Requests: make([]geminiEmbedRequest, len(texts)),
	}
	for i, text := range texts {
		if text == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
		reqData.Requests[i] = geminiEmbedRequest{
			Model:   "models/" + c.model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}
	}

	var resp struct {
		Embeddings []geminiEmbedding `json:"embeddings"`
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.endpoint, c.model)
	if err := c.sendRequest(ctx, url, reqData, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}

	result := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		result[i] = emb.Values
	}
	return result, nil
}

// sendRequest posts the request with exponential backoff on server errors.
func (c *GeminiClient) sendRequest(ctx context.Context, url string, reqData interface{}, respObj interface{}) error {
	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
		if err != nil {
			return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		if resp != nil {
			resp.Body.Close()
			resp = nil
		}
	}

	if lastErr != nil {
		return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	if resp == nil {
		return NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
	case resp.StatusCode >= 400:
		return NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, respObj); err != nil {
		return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}
	return nil
}

// register the gemini client at package load
func init() {
	RegisterClient("gemini", NewGeminiClient)
}
