package middleware

import (
	"context"

	"github.com/civinigrani/civigate/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// IdentityKey is the context key for the caller identity
	IdentityKey contextKey = "identity"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetIdentityFromContext retrieves the caller identity from context
func GetIdentityFromContext(ctx context.Context) *models.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*models.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds a caller identity to the context
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
