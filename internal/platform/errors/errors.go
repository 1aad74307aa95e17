// Package errors provides structured errors for the control surface and maps
// domain sentinels onto them.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pscheid92/livetranslate/internal/domain"
)

// ErrorType represents the category of error for logging and response formatting.
type ErrorType string

const (
	// TypeValidation indicates invalid input (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates an unknown language or resource (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeConflict indicates a duplicate language channel (HTTP 409)
	TypeConflict ErrorType = "conflict"
	// TypeUnavailable indicates the orchestrator cannot take the request (HTTP 503)
	TypeUnavailable ErrorType = "unavailable"
	// TypeInternal indicates server-side error (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// StatusError is the value of the "status" field in every error body.
const StatusError = "error"

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

func ConflictError(message string) *Error { return newError(TypeConflict, message, nil) }

func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients. It keeps the
// {"status","message"} shape the control page expects.
type ErrorResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Status:  StatusError,
		Message: e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into a structured Error.
// Existing *Error values are returned unchanged, domain sentinels are mapped
// to their category and everything else becomes an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	switch {
	case errors.Is(err, domain.ErrEmptyLanguage), errors.Is(err, domain.ErrInvalidLanguageCode):
		return newError(TypeValidation, err.Error(), err)
	case errors.Is(err, domain.ErrUnknownLanguage):
		return newError(TypeNotFound, err.Error(), err)
	case errors.Is(err, domain.ErrChannelExists):
		return newError(TypeConflict, err.Error(), err)
	case errors.Is(err, domain.ErrManagerClosed):
		return newError(TypeUnavailable, err.Error(), err)
	}

	return InternalError("internal server error", err)
}
