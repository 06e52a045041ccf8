package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := ErrConflict.WithDetail("message", "username taken")
	wrapped := fmt.Errorf("register: %w", err)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, "CONFLICT: username taken", err.Error())
}

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{name: "internal is retryable", err: ErrInternal, retryable: true},
		{name: "validation is fatal", err: ErrValidation, retryable: false},
		{name: "explicit fatal", err: ErrInternal.AsFatal(), retryable: false},
		{name: "explicit retryable", err: ErrConflict.AsRetryable(), retryable: true},
		{name: "fatal cause", err: ErrInternal.WithCause(ErrValidation), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestToErrorResponse(t *testing.T) {
	err := ErrValidation.WithDetail("field", "email")

	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("plain")))

	resp := ToErrorResponse(err)
	assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, map[string]interface{}{"field": "email"}, resp.Details)
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")
	assert.NotEmpty(t, StackTrace(err))

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsRetryable())
	assert.NotContains(t, ToErrorResponse(err).Details, "stack_trace")
}
