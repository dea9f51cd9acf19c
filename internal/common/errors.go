package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Failure taxonomy. Every request either succeeds or terminates with exactly
// one of these; none are retried beyond the extraction client's single
// transient retry.
var (
	// ErrDocumentUnreadable: the upload is not a valid PDF or yields neither
	// embedded text nor rendered page images.
	ErrDocumentUnreadable = errors.New("document unreadable")
	// ErrServiceUnavailable: the extraction API call failed at the transport
	// level, timed out, or returned a non-success status.
	ErrServiceUnavailable = errors.New("extraction service unavailable")
	// ErrMalformedResponse: the model returned text that is not valid JSON or
	// does not match the invoice schema.
	ErrMalformedResponse = errors.New("malformed extraction response")
	// ErrConfiguration: required configuration (API credential) is absent at
	// startup.
	ErrConfiguration = errors.New("configuration missing")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// RawResponseError carries the model's raw text alongside a taxonomy error so
// the UI can show what the service actually returned.
type RawResponseError struct {
	Raw []byte
	Err error
}

func (e *RawResponseError) Error() string { return e.Err.Error() }

func (e *RawResponseError) Unwrap() error { return e.Err }

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps a taxonomy error to the status code the web layer reports.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrDocumentUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode maps a taxonomy error to the stable machine-readable code used in
// JSON error bodies.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDocumentUnreadable):
		return "DOCUMENT_UNREADABLE"
	case errors.Is(err, ErrServiceUnavailable):
		return "SERVICE_UNAVAILABLE"
	case errors.Is(err, ErrMalformedResponse):
		return "MALFORMED_RESPONSE"
	case errors.Is(err, ErrConfiguration):
		return "CONFIGURATION_MISSING"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
