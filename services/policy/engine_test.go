package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services"
)

func newTestEngine(t *testing.T, ttl time.Duration) *Engine {
	t.Helper()
	reg, err := NewRegistry(testCatalog(), DefaultRules())
	require.NoError(t, err)
	engine, err := NewEngine(reg, NewTokenStore(), []byte("test-secret"), ttl, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Validation(t *testing.T) {
	reg, err := NewRegistry(testCatalog(), DefaultRules())
	require.NoError(t, err)

	_, err = NewEngine(reg, NewTokenStore(), nil, time.Minute, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEngine(reg, NewTokenStore(), []byte("s"), 0, zap.NewNop())
	assert.Error(t, err)
}

func TestEngine_Authorize(t *testing.T) {
	tests := []struct {
		name      string
		identity  models.Identity
		operation string
		wantErr   func(error) bool
	}{
		{
			name:      "admin write allowed",
			identity:  models.Identity{ID: "u1", Role: models.RoleAdmin},
			operation: "write_thing",
		},
		{
			name:      "analyst read allowed",
			identity:  models.Identity{ID: "u2", Role: models.RoleAnalyst},
			operation: "read_thing",
		},
		{
			name:      "analyst write denied",
			identity:  models.Identity{ID: "u2", Role: models.RoleAnalyst},
			operation: "write_thing",
			wantErr:   services.IsPolicyDeniedError,
		},
		{
			name:      "unknown role denied before operation lookup",
			identity:  models.Identity{ID: "u3", Role: "intern"},
			operation: "read_thing",
			wantErr:   services.IsUnknownIdentityError,
		},
		{
			name:      "unknown operation denied",
			identity:  models.Identity{ID: "u1", Role: models.RoleAdmin},
			operation: "drop_everything",
			wantErr:   services.IsUnknownOperationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, time.Minute)
			token, err := engine.Authorize(context.Background(), tt.identity, tt.operation, models.Args{"k": "v"})

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err))
				assert.Nil(t, token)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, token)
			assert.NotEmpty(t, token.ID)
			assert.NotEmpty(t, token.Signed)
			assert.Equal(t, tt.operation, token.Operation)
			assert.Equal(t, tt.identity.Role, token.Role)
			assert.True(t, token.ExpiresAt.After(token.IssuedAt))
		})
	}
}

func TestEngine_VerifyAndConsume_HappyPath(t *testing.T) {
	engine := newTestEngine(t, time.Minute)
	args := models.Args{"district": "Lucknow", "value": 0.9}

	token, err := engine.Authorize(context.Background(),
		models.Identity{ID: "admin-1", Role: models.RoleAdmin}, "write_thing", args)
	require.NoError(t, err)

	jti, err := engine.VerifyAndConsume(token.Signed, "write_thing", args)
	require.NoError(t, err)
	assert.Equal(t, token.ID, jti)
}

func TestEngine_VerifyAndConsume_SingleUse(t *testing.T) {
	engine := newTestEngine(t, time.Minute)
	args := models.Args{"district": "Lucknow", "value": 0.9}

	token, err := engine.Authorize(context.Background(),
		models.Identity{ID: "admin-1", Role: models.RoleAdmin}, "write_thing", args)
	require.NoError(t, err)

	_, err = engine.VerifyAndConsume(token.Signed, "write_thing", args)
	require.NoError(t, err)

	// Same token presented again: replay is rejected.
	_, err = engine.VerifyAndConsume(token.Signed, "write_thing", args)
	require.Error(t, err)
	assert.True(t, services.IsTokenInvalidError(err))
}

func TestEngine_VerifyAndConsume_ExactInstanceBinding(t *testing.T) {
	engine := newTestEngine(t, time.Minute)
	args := models.Args{"district": "Lucknow", "value": 0.9}

	token, err := engine.Authorize(context.Background(),
		models.Identity{ID: "admin-1", Role: models.RoleAdmin}, "write_thing", args)
	require.NoError(t, err)

	tests := []struct {
		name      string
		operation string
		args      models.Args
	}{
		{"different operation", "read_thing", args},
		{"different argument value", "write_thing", models.Args{"district": "Lucknow", "value": 0.1}},
		{"extra argument", "write_thing", models.Args{"district": "Lucknow", "value": 0.9, "force": true}},
		{"missing argument", "write_thing", models.Args{"district": "Lucknow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.VerifyAndConsume(token.Signed, tt.operation, tt.args)
			require.Error(t, err)
			assert.True(t, services.IsTokenInvalidError(err))
		})
	}

	// Binding mismatches must not consume: the token still works for its
	// exact instance.
	_, err = engine.VerifyAndConsume(token.Signed, "write_thing", args)
	assert.NoError(t, err)
}

func TestEngine_VerifyAndConsume_MapArgsNotInterchangeableWithArray(t *testing.T) {
	engine := newTestEngine(t, time.Minute)
	mapArgs := models.Args{"district": "Lucknow", "filter": map[string]interface{}{"a": 1.0}}

	token, err := engine.Authorize(context.Background(),
		models.Identity{ID: "admin-1", Role: models.RoleAdmin}, "write_thing", mapArgs)
	require.NoError(t, err)

	// An array holding the map's flattened key/value pairs is a different
	// argument instance and must be rejected without consuming the token.
	arrayArgs := models.Args{"district": "Lucknow", "filter": []interface{}{"a", 1.0}}
	_, err = engine.VerifyAndConsume(token.Signed, "write_thing", arrayArgs)
	require.Error(t, err)
	assert.True(t, services.IsTokenInvalidError(err))

	_, err = engine.VerifyAndConsume(token.Signed, "write_thing", mapArgs)
	assert.NoError(t, err)
}

func TestEngine_VerifyAndConsume_ArgOrderIrrelevant(t *testing.T) {
	engine := newTestEngine(t, time.Minute)

	token, err := engine.Authorize(context.Background(),
		models.Identity{ID: "admin-1", Role: models.RoleAdmin}, "write_thing",
		models.Args{"a": 1.0, "b": 2.0, "c": 3.0})
	require.NoError(t, err)

	_, err = engine.VerifyAndConsume(token.Signed, "write_thing",
		models.Args{"c": 3.0, "a": 1.0, "b": 2.0})
	assert.NoError(t, err)
}

func TestEngine_VerifyAndConsume_Expired(t *testing.T) {
	engine := newTestEngine(t, time.Minute)
	args := models.Args{"k": "v"}

	token, err := engine.Authorize(context.Background(),
		models.Identity{ID: "admin-1", Role: models.RoleAdmin}, "write_thing", args)
	require.NoError(t, err)

	// Advance the engine clock past the TTL; consumption checks expiry
	// lazily against this clock.
	engine.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = engine.VerifyAndConsume(token.Signed, "write_thing", args)
	require.Error(t, err)
	assert.True(t, services.IsTokenInvalidError(err))
}

func TestEngine_VerifyAndConsume_Forged(t *testing.T) {
	engine := newTestEngine(t, time.Minute)
	other := newTestEngine(t, time.Minute)
	other.secret = []byte("different-secret")
	args := models.Args{"k": "v"}

	forged, err := other.Authorize(context.Background(),
		models.Identity{ID: "admin-1", Role: models.RoleAdmin}, "write_thing", args)
	require.NoError(t, err)

	_, err = engine.VerifyAndConsume(forged.Signed, "write_thing", args)
	require.Error(t, err)
	assert.True(t, services.IsTokenInvalidError(err))

	_, err = engine.VerifyAndConsume("not-a-jwt", "write_thing", args)
	require.Error(t, err)
	assert.True(t, services.IsTokenInvalidError(err))
}

func TestEngine_Catalog(t *testing.T) {
	engine := newTestEngine(t, time.Minute)
	ops := engine.Catalog()
	require.Len(t, ops, 2)
	assert.Equal(t, "read_thing", ops[0].Name)
}
