package llm

import "fmt"

// LLMError is the error type for model invocation failures.
type LLMError struct {
	Code    int    // error code
	Message string // error message
}

// Error implements the error interface.
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// error codes
const (
	ErrCodeInvalidAPIKey  = 2001 // invalid API key
	ErrCodeInvalidRequest = 2002 // invalid request
	ErrCodeNetworkError   = 2003 // network failure
	ErrCodeRateLimited    = 2004 // rate limit exceeded
	ErrCodeServerError    = 2005 // server-side error
	ErrCodeTimeout        = 2006 // request timed out
	ErrCodeEmptyPrompt    = 2007 // empty prompt
	ErrCodeContentFilter  = 2008 // blocked by safety filter
	ErrCodeModelOverload  = 2009 // model overloaded
	ErrCodeContextTooLong = 2010 // context exceeds model window
)

// error messages
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyPrompt    = "prompt cannot be empty"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgContentFilter  = "content blocked by safety filter"
	ErrMsgModelOverload  = "model is currently overloaded"
	ErrMsgContextTooLong = "context length exceeds model's maximum"
)

// NewLLMError creates a new LLM error.
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps a plain error as an LLM error.
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	if llmErr, ok := err.(LLMError); ok {
		return llmErr
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
	}
}
