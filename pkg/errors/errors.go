package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so wrapped and cloned
// copies still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Export pipeline errors.
var (
	ErrExportBusy            = New("EXPORT_BUSY", http.StatusConflict, "an export is already in progress")
	ErrAlertPending          = New("EXPORT_ALERT_PENDING", http.StatusConflict, "previous export failure must be acknowledged")
	ErrSurfaceUnavailable    = New("SURFACE_UNAVAILABLE", http.StatusUnprocessableEntity, "chart surface is not available")
	ErrSurfaceTainted        = New("SURFACE_TAINTED", http.StatusUnprocessableEntity, "chart surface contains cross-origin content")
	ErrAssembly              = New("DOCUMENT_ASSEMBLY_FAILED", http.StatusInternalServerError, "document assembly failed")
	ErrStatisticsUnavailable = New("STATISTICS_UNAVAILABLE", http.StatusBadGateway, "statistics service unavailable")
	ErrInvalidTransition     = New("INVALID_STATE_TRANSITION", http.StatusConflict, "invalid export state transition")
	ErrSnapshotTooLarge      = New("SNAPSHOT_TOO_LARGE", http.StatusRequestEntityTooLarge, "surface snapshot too large")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
