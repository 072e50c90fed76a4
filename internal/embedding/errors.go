package embedding

import "fmt"

// EmbeddingError describes a failure while generating embeddings.
type EmbeddingError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeInvalidAPIKey  = 1001
	ErrCodeInvalidRequest = 1002
	ErrCodeNetworkError   = 1003
	ErrCodeRateLimited    = 1004
	ErrCodeServerError    = 1005
	ErrCodeTimeout        = 1006
	ErrCodeEmptyInput     = 1007
)

// Error messages.
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyInput     = "input text cannot be empty"
	ErrMsgNetworkError   = "network connection error"
)

// NewEmbeddingError creates an EmbeddingError.
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}
