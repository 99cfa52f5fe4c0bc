package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorKind classifies a failure for retry and surfacing decisions.
type ErrorKind string

const (
	// KindInputInvalid: bad file type/size/duplicate, malformed query,
	// unknown group. Never retried.
	KindInputInvalid ErrorKind = "input_invalid"
	// KindAccessDenied: caller lacks group membership. Never retried.
	KindAccessDenied ErrorKind = "access_denied"
	// KindTransientExternal: network, timeout, 5xx, broker unreachable.
	// Retried with bounded backoff.
	KindTransientExternal ErrorKind = "transient_external"
	// KindPermanentExternal: 4xx from a provider, malformed response,
	// extraction gave zero pages. Not retried.
	KindPermanentExternal ErrorKind = "permanent_external"
	// KindDataConsistency: record missing, object missing when key
	// present. Not retried.
	KindDataConsistency ErrorKind = "data_consistency"
	// KindInternal: unexpected; caught at the outermost handler.
	KindInternal ErrorKind = "internal"
)

// AppError carries a kind plus an operator-facing message. Components
// catch the narrowest kind they can map and re-raise; only the outer
// request/task boundary converts to a user-visible failure.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewError builds an AppError with an explicit code.
func NewError(kind ErrorKind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

// InvalidInput is shorthand for a non-retryable caller mistake.
func InvalidInput(code, message string) *AppError {
	return &AppError{Kind: KindInputInvalid, Code: code, Message: message}
}

// Transient wraps an external failure that is safe to retry.
func Transient(message string, err error) *AppError {
	return &AppError{Kind: KindTransientExternal, Code: "service_unavailable", Message: message, Err: err}
}

// Permanent wraps an external failure that must not be retried.
func Permanent(message string, err error) *AppError {
	return &AppError{Kind: KindPermanentExternal, Code: "upstream_error", Message: message, Err: err}
}

// Inconsistent wraps a data-consistency failure.
func Inconsistent(message string, err error) *AppError {
	return &AppError{Kind: KindDataConsistency, Code: "data_inconsistent", Message: message, Err: err}
}

// Retryable reports whether the ingestion worker should retry after err.
func Retryable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind == KindTransientExternal
	}
	// Unclassified errors default to retryable so transient infrastructure
	// hiccups are not turned into terminal failures.
	return true
}

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// RespondWithError sends a standardized error response.
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithAppError maps an AppError kind to an HTTP status. Internal
// and unclassified errors surface a generic message plus the trace id.
func RespondWithAppError(c *gin.Context, err error, traceID string) {
	var ae *AppError
	if !errors.As(err, &ae) {
		ae = &AppError{Kind: KindInternal, Code: "internal_error", Message: "An unexpected error occurred"}
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case KindInputInvalid:
		status = http.StatusBadRequest
	case KindAccessDenied:
		status = http.StatusForbidden
	case KindTransientExternal:
		status = http.StatusServiceUnavailable
	case KindPermanentExternal:
		status = http.StatusBadGateway
	case KindDataConsistency:
		status = http.StatusConflict
	}

	msg := ae.Message
	if ae.Kind == KindInternal {
		msg = "An unexpected error occurred"
	}

	c.JSON(status, ErrorResponse{
		ErrorCode: ae.Code,
		Message:   msg,
		TraceID:   traceID,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error.
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error.
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithForbidden sends a 403 Forbidden error.
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error.
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error.
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// Truncate bounds an error message for persistence (document.error is
// capped at 500 chars).
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
