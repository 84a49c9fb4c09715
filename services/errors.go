package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnknownIdentity     ErrorType = "unknown_identity"
	ErrorTypeUnknownOperation    ErrorType = "unknown_operation"
	ErrorTypePolicyDenied        ErrorType = "policy_denied"
	ErrorTypeTokenInvalid        ErrorType = "token_invalid"
	ErrorTypeUpstreamUnavailable ErrorType = "upstream_unavailable"
	ErrorTypeUpstreamError       ErrorType = "upstream_error"
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeInternal            ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Authorization errors. PolicyDenied and TokenInvalid are definitive
	// security decisions: never retried, always logged to the audit trail.
	ErrUnknownIdentity  = NewDomainError(ErrorTypeUnknownIdentity, "unknown identity", nil)
	ErrUnknownOperation = NewDomainError(ErrorTypeUnknownOperation, "unknown operation", nil)
	ErrPolicyDenied     = NewDomainError(ErrorTypePolicyDenied, "role not permitted for operation class", nil)

	// Token errors
	ErrTokenInvalid  = NewDomainError(ErrorTypeTokenInvalid, "invalid or stale verification", nil)
	ErrTokenExpired  = NewDomainError(ErrorTypeTokenInvalid, "verification token expired", nil)
	ErrTokenConsumed = NewDomainError(ErrorTypeTokenInvalid, "verification token already consumed", nil)
	ErrTokenMismatch = NewDomainError(ErrorTypeTokenInvalid, "verification token does not match operation instance", nil)
	ErrTokenMissing  = NewDomainError(ErrorTypeTokenInvalid, "write operation requires a verification token", nil)

	// Upstream errors
	ErrUpstreamUnavailable = NewDomainError(ErrorTypeUpstreamUnavailable, "upstream momentarily unavailable", nil)
	ErrUpstreamError       = NewDomainError(ErrorTypeUpstreamError, "upstream computation error", nil)
	ErrRetriesExhausted    = NewDomainError(ErrorTypeUpstreamUnavailable, "retries exhausted", nil)

	// Validation errors
	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrMissingArgument = NewDomainError(ErrorTypeValidation, "missing required argument", nil)

	// Internal errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal gateway error", nil)
)

// Error type checking helper functions

// IsUnknownIdentityError checks if an error is an unknown identity error
func IsUnknownIdentityError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnknownIdentity
	}
	return false
}

// IsUnknownOperationError checks if an error is an unknown operation error
func IsUnknownOperationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnknownOperation
	}
	return false
}

// IsPolicyDeniedError checks if an error is a policy denial
func IsPolicyDeniedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypePolicyDenied
	}
	return false
}

// IsTokenInvalidError checks if an error is a token rejection
// (expired, mismatched, or already consumed)
func IsTokenInvalidError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeTokenInvalid
	}
	return false
}

// IsDenialError reports whether an error is any definitive authorization
// decision (unknown identity/operation, policy denial, or token rejection).
// Denials are terminal and must not be retried.
func IsDenialError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Type {
		case ErrorTypeUnknownIdentity, ErrorTypeUnknownOperation,
			ErrorTypePolicyDenied, ErrorTypeTokenInvalid:
			return true
		}
	}
	return false
}

// IsRetryableError reports whether an error represents a transient
// infrastructure fault that may be retried with backoff.
func IsRetryableError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUpstreamUnavailable
	}
	return false
}

// IsUpstreamError checks if an error is a non-retryable upstream
// computation failure
func IsUpstreamError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUpstreamError
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapUnavailable wraps an error as a transient upstream fault
func WrapUnavailable(message string, err error) error {
	return NewDomainError(ErrorTypeUpstreamUnavailable, message, err)
}

// WrapUpstream wraps an error as a non-retryable upstream failure
func WrapUpstream(message string, err error) error {
	return NewDomainError(ErrorTypeUpstreamError, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
