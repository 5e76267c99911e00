package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"FxSignal/internal/domain/models"
)

// AppError is an error with an HTTP status and a stable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", message, http.StatusTooManyRequests)
}

func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// FromError maps domain errors onto HTTP statuses. Unknown errors become 500
// without leaking their text.
func FromError(err error) *AppError {
	var appErr *AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrMissingArtifact):
		return NewAppError("ERR_NOT_FOUND", "", err.Error(), http.StatusNotFound).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return NewAppError("ERR_INSUFFICIENT_DATA", "", err.Error(), http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, models.ErrFeatureSchemaMismatch):
		return NewAppError("ERR_SCHEMA_MISMATCH", "", err.Error(), http.StatusConflict).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewAppError("ERR_TIMEOUT", "", "request timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return InternalError("Something went wrong").WithError(err)
	}
}
