// Package policy implements the role registry, the (role, operation-class)
// decision table, and verification-token issuance. The engine decides and
// mints; it never executes an operation.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services"
)

// Engine authorizes proposed operations and mints verification tokens.
// Reentrant: no shared mutable state beyond the token store, which is
// internally synchronized.
type Engine struct {
	registry *Registry
	store    *TokenStore
	secret   []byte
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// tokenClaims are the JWT claims binding a token to one operation instance.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role      models.Role `json:"role"`
	Operation string      `json:"op"`
	ArgsHash  string      `json:"args_hash"`
}

// NewEngine creates a policy engine. The signing secret must be non-empty;
// ttl is the token validity window (seconds-to-minutes scale).
func NewEngine(registry *Registry, store *TokenStore, secret []byte, ttl time.Duration, logger *zap.Logger) (*Engine, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token signing secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Engine{
		registry: registry,
		store:    store,
		secret:   secret,
		ttl:      ttl,
		logger:   logger.Named("policy"),
		now:      time.Now,
	}, nil
}

// Authorize decides allow/deny for (identity, operation, arguments) and, on
// allow, mints a token scoped to that exact operation instance.
//
//  1. Unknown role  -> unknown identity denial.
//  2. Unknown operation -> unknown operation denial.
//  3. (role, class) lookup; deny -> policy denial.
//  4. Allow -> canonical argument hash, signed single-use token.
func (e *Engine) Authorize(ctx context.Context, identity models.Identity, operation string, args models.Args) (*models.VerificationToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.WrapInternal("authorize cancelled", err)
	}

	if !identity.Role.IsKnown() {
		e.logger.Warn("authorization denied: unknown identity",
			zap.String("role", string(identity.Role)))
		return nil, services.ErrUnknownIdentity
	}

	op, ok := e.registry.Lookup(operation)
	if !ok {
		e.logger.Warn("authorization denied: unknown operation",
			zap.String("operation", operation),
			zap.String("role", string(identity.Role)))
		return nil, services.ErrUnknownOperation
	}

	if !e.registry.Decide(identity.Role, op.Class) {
		e.logger.Warn("authorization denied by policy",
			zap.String("operation", operation),
			zap.String("class", string(op.Class)),
			zap.String("role", string(identity.Role)))
		return nil, services.NewDomainError(services.ErrorTypePolicyDenied,
			"role not permitted for operation class", nil).
			WithDetail("operation", operation).
			WithDetail("class", string(op.Class))
	}

	argsHash, err := HashArgs(args)
	if err != nil {
		return nil, services.WrapInternal("argument canonicalization failed", err)
	}

	now := e.now()
	expires := now.Add(e.ttl)
	jti := uuid.New().String()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role:      identity.Role,
		Operation: op.Name,
		ArgsHash:  argsHash,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.secret)
	if err != nil {
		return nil, services.WrapInternal("token signing failed", err)
	}

	e.store.Issue(jti, expires)

	e.logger.Info("verification token minted",
		zap.String("token_id", jti),
		zap.String("operation", op.Name),
		zap.String("role", string(identity.Role)),
		zap.Time("expires_at", expires))

	return &models.VerificationToken{
		ID:         jti,
		Signed:     signed,
		IdentityID: identity.ID,
		Role:       identity.Role,
		Operation:  op.Name,
		ArgsHash:   argsHash,
		IssuedAt:   now,
		ExpiresAt:  expires,
	}, nil
}

// VerifyAndConsume validates a presented token against the requested
// operation instance and atomically marks it consumed. Called by the tool
// server immediately before a write executes. Any mismatch leaves the token
// unconsumed only if consumption itself has not succeeded; a token that
// fails the binding check after consumption cannot occur because binding is
// checked first.
func (e *Engine) VerifyAndConsume(signed, operation string, args models.Args) (string, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return e.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", services.NewDomainError(services.ErrorTypeTokenInvalid, "invalid or stale verification", err)
	}

	if claims.Operation != operation {
		return claims.ID, services.NewDomainError(services.ErrorTypeTokenInvalid,
			"verification token does not match operation instance", nil)
	}

	argsHash, hashErr := HashArgs(args)
	if hashErr != nil {
		return claims.ID, services.WrapInternal("argument canonicalization failed", hashErr)
	}
	if claims.ArgsHash != argsHash {
		return claims.ID, services.NewDomainError(services.ErrorTypeTokenInvalid,
			"verification token does not match operation instance", nil)
	}

	switch e.store.Consume(claims.ID, e.now()) {
	case ConsumeOK:
		return claims.ID, nil
	case ConsumeExpired:
		return claims.ID, services.ErrTokenExpired
	case ConsumeAlreadyUsed:
		return claims.ID, services.ErrTokenConsumed
	default:
		return claims.ID, services.ErrTokenInvalid
	}
}

// Registry exposes the operation catalog for planners and handlers.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Catalog returns the registered operations sorted by name.
func (e *Engine) Catalog() []models.Operation {
	return e.registry.Operations()
}
