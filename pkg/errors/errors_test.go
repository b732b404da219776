package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"validation", ErrValidation, false},
		{"invalid rule", ErrInvalidRule, false},
		{"invalid event", ErrInvalidEvent, false},
		{"not found", ErrNotFound, false},
		{"internal", ErrInternal, true},
		{"rate limited", ErrRateLimited, true},
		{"rules unavailable", ErrRulesUnavailable, true},
		{"forced fatal", ErrInternal.AsFatal(), false},
		{"forced retryable", ErrValidation.AsRetryable(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("depth 9 exceeds limit 8")
	err := fmt.Errorf("rule r1: %w", Wrap(cause, ErrInvalidRule))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(err))
	assert.Nil(t, Wrap(nil, ErrInvalidRule))

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Error(), "INVALID_RULE")
	assert.Contains(t, appErr.Error(), "depth 9")
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrRateLimited.WithDetail("scope", "org-1"))
	assert.Equal(t, "RATE_LIMITED", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"scope": "org-1"}, resp["details"])

	resp = ToErrorResponse(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("boom")))
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	err := RecoverPanic("kaboom")
	require.Error(t, err)

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsFatal())
	assert.Contains(t, err.Error(), "kaboom")
	assert.NotEmpty(t, appErr.Details["stack_trace"])

	resp := ToErrorResponse(err)
	details, _ := resp["details"].(map[string]interface{})
	assert.NotContains(t, details, "stack_trace")
	assert.Equal(t, true, details["panic"])

	var called error
	RecoverPanicWithCallback(errors.New("x"), func(e error) { called = e })
	assert.Error(t, called)
}
