package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/lexidoc/legal-doc-analyzer/api/model"
)

// ErrorType classifies an error for HTTP status mapping.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError carries an error type, a user-facing message and a response code.
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Code    int       `json:"code"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewValidationError(message, details string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
		Code:    http.StatusBadRequest,
	}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func NewConflictError(message, details string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Details: details,
		Code:    http.StatusConflict,
	}
}

func NewInternalError(message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: details,
		Code:    http.StatusInternalServerError,
	}
}

// ErrorMiddleware recovers panics and renders errors pushed onto the
// gin context as the standard response envelope.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("trace_id", c.GetString("TraceID")).
					Errorf("panic recovered: %v\n%s", r, debug.Stack())

				c.AbortWithStatusJSON(http.StatusInternalServerError, model.Response{
					Code:    http.StatusInternalServerError,
					Message: "internal server error",
					TraceID: c.GetString("TraceID"),
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *AppError
		if e, ok := err.(*AppError); ok {
			appErr = e
		} else {
			appErr = NewInternalError("internal server error", err)
		}

		if appErr.Code >= http.StatusInternalServerError {
			log.WithFields(map[string]interface{}{
				"trace_id": c.GetString("TraceID"),
				"type":     appErr.Type,
				"details":  appErr.Details,
			}).Error(appErr.Message)
		}

		resp := model.Response{
			Code:    appErr.Code,
			Message: appErr.Message,
			Data:    appErr.Details,
			TraceID: c.GetString("TraceID"),
		}
		c.AbortWithStatusJSON(appErr.Code, resp)
	}
}

// HandleError pushes err onto the context for ErrorMiddleware to render.
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
