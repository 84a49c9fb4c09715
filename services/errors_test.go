package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_ErrorString(t *testing.T) {
	plain := NewDomainError(ErrorTypePolicyDenied, "role not permitted", nil)
	assert.Equal(t, "policy_denied: role not permitted", plain.Error())

	wrapped := NewDomainError(ErrorTypeUpstreamError, "query failed", errors.New("boom"))
	assert.Contains(t, wrapped.Error(), "upstream_error")
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestDomainError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewDomainError(ErrorTypeInternal, "outer", inner)
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.True(t, errors.Is(err, inner))
}

func TestDomainError_IsMatchesByType(t *testing.T) {
	fresh := NewDomainError(ErrorTypeTokenInvalid, "something else entirely", nil)
	assert.True(t, errors.Is(fresh, ErrTokenInvalid))
	assert.False(t, errors.Is(fresh, ErrPolicyDenied))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		denial    bool
		retryable bool
	}{
		{"unknown identity", ErrUnknownIdentity, true, false},
		{"unknown operation", ErrUnknownOperation, true, false},
		{"policy denied", ErrPolicyDenied, true, false},
		{"token expired", ErrTokenExpired, true, false},
		{"token consumed", ErrTokenConsumed, true, false},
		{"token missing", ErrTokenMissing, true, false},
		{"upstream unavailable", ErrUpstreamUnavailable, false, true},
		{"upstream error", ErrUpstreamError, false, false},
		{"validation", ErrInvalidInput, false, false},
		{"internal", ErrInternal, false, false},
		{"wrapped retryable", fmt.Errorf("call: %w", ErrUpstreamUnavailable), false, true},
		{"wrapped denial", fmt.Errorf("call: %w", ErrPolicyDenied), true, false},
		{"plain error", errors.New("plain"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.denial, IsDenialError(tt.err), "denial")
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err), "retryable")
			if tt.denial {
				assert.False(t, IsRetryableError(tt.err), "denials are never retried")
			}
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypePolicyDenied, "denied", nil).
		WithDetail("operation", "update_district_prgi").
		WithDetail("class", "write")

	require.Len(t, err.Details, 2)
	assert.Equal(t, "write", err.Details["class"])
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeTokenInvalid, GetErrorType(ErrTokenConsumed))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}
