package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered panic value into a retryable internal error
// that carries the goroutine stack under the "stack_trace" detail.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return ErrInternal.
		WithCause(err).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack()))
}

// StackTrace returns the stack captured by RecoverPanic, if any.
func StackTrace(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return ""
	}
	if st, ok := appErr.Details["stack_trace"].(string); ok {
		return st
	}
	return ""
}
