package llm

import "time"

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// GeminiRequest is the generateContent request body.
type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiContent is a role-tagged list of content parts.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a single content part. Only text is used here.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiGenerationConfig holds sampling parameters.
type GeminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// GeminiResponse is the generateContent response body.
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
	Usage      GeminiUsage       `json:"usageMetadata"`
	Error      *GeminiAPIError   `json:"error,omitempty"`
}

// GeminiCandidate is one generated answer.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// GeminiUsage reports token consumption.
type GeminiUsage struct {
	PromptTokens    int `json:"promptTokenCount"`
	CandidateTokens int `json:"candidatesTokenCount"`
	TotalTokens     int `json:"totalTokenCount"`
}

// GeminiAPIError is the error payload returned on non-2xx responses.
type GeminiAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Response is the unified answer structure returned by all clients.
type Response struct {
	Text       string    // generated text
	Messages   []Message // full message list for chat calls
	TokenCount int       // tokens consumed
	ModelName  string    // model used
	FinishTime time.Time // completion time
}

// RAGResponse is an answer grounded in retrieved passages.
type RAGResponse struct {
	Answer  string            // answer text
	Sources []SourceReference // cited passages
}

// SourceReference points at the passage an answer drew from.
type SourceReference struct {
	ID       string                 // chunk ID
	FileID   string                 // owning document ID
	FileName string                 // original file name
	Page     int                    // 1-based page number, 0 if unknown
	Content  string                 // quoted passage
	Score    float32                // retrieval similarity score
	Metadata map[string]interface{} // extra metadata
}

// common model names
const (
	ModelGeminiFlash    = "gemini-2.5-flash" // fast, good default for document analysis
	ModelGeminiPro      = "gemini-2.5-pro"   // stronger reasoning, slower
	ModelGeminiFlashOld = "gemini-1.5-flash" // previous generation
)

// finish reason returned when a candidate was cut by the safety filter
const finishReasonSafety = "SAFETY"
