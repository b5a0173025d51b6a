package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("New creates error with correct fields", func(t *testing.T) {
		err := New(ErrorTypeValidation, CodeInvalidInput, "test message")

		assert.Equal(t, ErrorTypeValidation, err.Type)
		assert.Equal(t, CodeInvalidInput, err.Code)
		assert.Equal(t, "test message", err.Message)
		assert.False(t, err.Retryable)
	})

	t.Run("Newf formats the message", func(t *testing.T) {
		err := Newf(ErrorTypeValidation, CodeInvalidInput, "node %q missing", "start")
		assert.Equal(t, `node "start" missing`, err.Message)
	})

	t.Run("Error renders code and message", func(t *testing.T) {
		err := New(ErrorTypeValidation, CodeInvalidInput, "test message")
		expected := fmt.Sprintf("%s: %s", CodeInvalidInput, "test message")
		assert.Equal(t, expected, err.Error())
	})

	t.Run("Error includes details when set", func(t *testing.T) {
		err := New(ErrorTypeValidation, CodeInvalidInput, "bad graph").WithDetails("2 violation(s)")
		assert.Contains(t, err.Error(), "2 violation(s)")
	})

	t.Run("WithContext adds context", func(t *testing.T) {
		err := New(ErrorTypeConflict, CodeRevisionMismatch, "stale write")
		err.WithContext("design_id", "d-1")
		assert.Equal(t, "d-1", err.Context["design_id"])
	})

	t.Run("Wrap preserves cause for Unwrap", func(t *testing.T) {
		cause := errors.New("connection refused")
		wrapped := Wrap(cause, ErrorTypeDatabase, CodeDatabaseError, "query failed")
		assert.Equal(t, cause, wrapped.Unwrap())
		assert.True(t, errors.Is(wrapped, cause))
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		errType ErrorType
		status  int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeConflict, http.StatusConflict},
		{ErrorTypeTimeout, http.StatusRequestTimeout},
		{ErrorTypeRateLimit, http.StatusTooManyRequests},
		{ErrorTypeTransport, http.StatusBadGateway},
		{ErrorTypeInternal, http.StatusInternalServerError},
		{ErrorTypeDatabase, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := New(tt.errType, CodeInternal, "x")
			assert.Equal(t, tt.status, err.HTTPStatus())
		})
	}
}

func TestGetAppError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, GetAppError(nil))
	})

	t.Run("passes through AppError", func(t *testing.T) {
		original := NotFoundError(CodeDesignNotFound, "design", "d-1")
		assert.Same(t, original, GetAppError(original))
	})

	t.Run("finds AppError behind fmt wrapping", func(t *testing.T) {
		original := ConflictError(CodeRevisionMismatch, "stale write")
		wrapped := fmt.Errorf("saving: %w", original)
		assert.Same(t, original, GetAppError(wrapped))
	})

	t.Run("wraps unknown errors as internal", func(t *testing.T) {
		got := GetAppError(errors.New("boom"))
		assert.Equal(t, ErrorTypeInternal, got.Type)
		assert.Equal(t, CodeInternal, got.Code)
	})
}

func TestConstructors(t *testing.T) {
	t.Run("NotFoundError carries entity and id", func(t *testing.T) {
		err := NotFoundError(CodeNodeNotFound, "node", "start")
		assert.Equal(t, ErrorTypeNotFound, err.Type)
		assert.Contains(t, err.Message, `node "start"`)
		assert.Equal(t, "start", err.Context["id"])
	})

	t.Run("TransportError is retryable", func(t *testing.T) {
		err := TransportError(CodeBrokerError, "broker unreachable", errors.New("dial tcp"))
		assert.True(t, err.Retryable)
		assert.Equal(t, ErrorTypeTransport, err.Type)
	})

	t.Run("EngineError has engine type", func(t *testing.T) {
		err := EngineError("node handler panicked")
		assert.Equal(t, ErrorTypeEngine, err.Type)
		assert.False(t, err.Retryable)
	})

	t.Run("type predicates", func(t *testing.T) {
		assert.True(t, IsNotFound(NotFoundError(CodeDesignNotFound, "design", "x")))
		assert.True(t, IsValidation(ValidationError(CodeInvalidInput, "bad")))
		assert.True(t, IsConflict(ConflictError(CodeActiveExecutions, "busy")))
		assert.False(t, IsNotFound(ValidationError(CodeInvalidInput, "bad")))
	})
}

func TestValidationErrors(t *testing.T) {
	t.Run("empty accumulator yields nil error", func(t *testing.T) {
		v := NewValidationErrors()
		assert.False(t, v.HasErrors())
		assert.NoError(t, v.AsError())
	})

	t.Run("accumulates every violation", func(t *testing.T) {
		v := NewValidationErrors()
		v.Add("connection %q references missing node %q", "c1", "ghost")
		v.Add("design has no entry node")

		err := v.AsError()
		assert.Error(t, err)

		appErr := GetAppError(err)
		assert.Equal(t, ErrorTypeValidation, appErr.Type)
		assert.Equal(t, CodeInvalidGraph, appErr.Code)
		assert.Len(t, appErr.Context["errors"], 2)
	})
}
