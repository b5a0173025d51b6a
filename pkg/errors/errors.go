// Package errors defines the typed application errors used across flowcanvas.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an error for propagation and HTTP mapping.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeEngine     ErrorType = "engine"
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeInternal   ErrorType = "internal"
)

// ErrorCode identifies the specific failure within a type.
type ErrorCode string

const (
	CodeInvalidInput     ErrorCode = "invalid_input"
	CodeMissingField     ErrorCode = "missing_field"
	CodeInvalidGraph     ErrorCode = "invalid_graph"
	CodeDuplicateNode    ErrorCode = "duplicate_node"
	CodeDuplicateEdge    ErrorCode = "duplicate_edge"
	CodeUnknownNodeType  ErrorCode = "unknown_node_type"
	CodeDesignNotFound   ErrorCode = "design_not_found"
	CodeNodeNotFound     ErrorCode = "node_not_found"
	CodeEdgeNotFound     ErrorCode = "connection_not_found"
	CodeVersionNotFound  ErrorCode = "version_not_found"
	CodeRunNotFound      ErrorCode = "execution_not_found"
	CodeRunFinished      ErrorCode = "execution_finished"
	CodeTemplateNotFound ErrorCode = "template_not_found"
	CodeRevisionMismatch ErrorCode = "revision_mismatch"
	CodeActiveExecutions ErrorCode = "active_executions"
	CodeEngineFailure    ErrorCode = "engine_failure"
	CodeTimeout          ErrorCode = "timeout"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeDatabaseError    ErrorCode = "database_error"
	CodeBrokerError      ErrorCode = "broker_error"
	CodeInternal         ErrorCode = "internal_error"
)

// AppError is the error value exchanged between layers. It carries enough
// detail for the HTTP boundary to build a response and for callers to decide
// whether a retry makes sense.
type AppError struct {
	Type      ErrorType      `json:"type"`
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Cause     error          `json:"-"`
	Retryable bool           `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair for diagnostics.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithDetails sets the free-form detail string.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// HTTPStatus maps the error type to a response status code.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates an AppError.
func New(errType ErrorType, code ErrorCode, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(errType ErrorType, code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Type: errType, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches type and code to an underlying error.
func Wrap(err error, errType ErrorType, code ErrorCode, message string) *AppError {
	return &AppError{Type: errType, Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, errType ErrorType, code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Type: errType, Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// GetAppError extracts an *AppError from err, wrapping unknown errors as
// internal. Returns nil for a nil error.
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    CodeInternal,
		Message: "an unexpected error occurred",
		Cause:   err,
	}
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

func IsNotFound(err error) bool   { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }
func IsConflict(err error) bool   { return IsType(err, ErrorTypeConflict) }

// ValidationError builds a validation failure.
func ValidationError(code ErrorCode, message string) *AppError {
	return New(ErrorTypeValidation, code, message)
}

// NotFoundError builds a not-found failure for a named entity.
func NotFoundError(code ErrorCode, entity, id string) *AppError {
	return Newf(ErrorTypeNotFound, code, "%s %q not found", entity, id).
		WithContext("id", id)
}

// ConflictError builds a conflict failure (revision races, duplicate state).
func ConflictError(code ErrorCode, message string) *AppError {
	return New(ErrorTypeConflict, code, message)
}

// EngineError builds an execution-engine failure. These are recorded on the
// execution record, not surfaced as API errors.
func EngineError(message string) *AppError {
	return New(ErrorTypeEngine, CodeEngineFailure, message)
}

// TransportError builds a boundary failure (broker, downstream service).
// Transport errors are the only class eligible for automatic retry.
func TransportError(code ErrorCode, message string, cause error) *AppError {
	e := Wrap(cause, ErrorTypeTransport, code, message)
	e.Retryable = true
	return e
}

// TimeoutError builds a bounded-timeout failure.
func TimeoutError(message string) *AppError {
	e := New(ErrorTypeTimeout, CodeTimeout, message)
	e.Retryable = true
	return e
}

// DatabaseError wraps a storage failure.
func DatabaseError(message string, cause error) *AppError {
	return Wrap(cause, ErrorTypeDatabase, CodeDatabaseError, message)
}

// InternalError wraps an unexpected failure.
func InternalError(message string, cause error) *AppError {
	return Wrap(cause, ErrorTypeInternal, CodeInternal, message)
}

// ValidationErrors accumulates graph/input violations so callers see every
// problem at once instead of fixing them one round-trip at a time.
type ValidationErrors struct {
	Violations []string `json:"violations"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add appends a violation message.
func (v *ValidationErrors) Add(format string, args ...any) {
	v.Violations = append(v.Violations, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any violation was recorded.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Violations) > 0
}

// AsError converts the accumulated violations into a single AppError, or nil
// when empty.
func (v *ValidationErrors) AsError() error {
	if !v.HasErrors() {
		return nil
	}
	e := ValidationError(CodeInvalidGraph, "validation failed")
	e.Details = fmt.Sprintf("%d violation(s)", len(v.Violations))
	return e.WithContext("errors", v.Violations)
}
