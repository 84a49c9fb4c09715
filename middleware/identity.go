package middleware

import (
	"net/http"

	"github.com/civinigrani/civigate/models"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// IdentityMiddleware resolves the caller identity from request headers.
// Identities are declared, not authenticated: the policy engine treats
// an unknown role as a denial, so a forged header gains nothing beyond
// what the declared role is already entitled to.
type IdentityMiddleware struct {
	logger *zap.Logger
}

// NewIdentityMiddleware creates a new IdentityMiddleware
func NewIdentityMiddleware(logger *zap.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{logger: logger}
}

// Resolve extracts X-Identity-ID and X-Role headers into the request
// context. Missing headers leave the context untouched so handlers can
// fall back to body fields.
func (m *IdentityMiddleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = WithRequestID(ctx, reqID)
		}

		role := r.Header.Get("X-Role")
		id := r.Header.Get("X-Identity-ID")
		if role != "" || id != "" {
			if id == "" {
				id = "anonymous"
			}
			ctx = WithIdentity(ctx, &models.Identity{
				ID:   id,
				Role: models.Role(role),
			})
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose resolved identity does not carry one
// of the given roles. Used for the audit read surface.
func (m *IdentityMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentityFromContext(r.Context())
			if identity == nil {
				writeForbiddenJSON(w, "role required")
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				m.logger.Warn("role not permitted for endpoint",
					zap.String("role", string(identity.Role)),
					zap.String("path", r.URL.Path))
				writeForbiddenJSON(w, "role not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeForbiddenJSON(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden","message":"` + message + `"}`))
}
