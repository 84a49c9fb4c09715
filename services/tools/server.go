// Package tools implements the tool server: the only component that executes
// read or write operations against the governance data. Write-class calls
// must present a valid verification token; any mismatch rejects the call
// before any state changes.
package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services"
	"github.com/civinigrani/civigate/services/policy"
)

// Operation names exposed by the server. The catalog and classes are fixed
// at registration; Catalog() is the single registration source.
const (
	OpTopDistricts    = "prgi_top_districts"
	OpExplainDistrict = "prgi_explain"
	OpGrievanceSpikes = "pgsm_spikes"
	OpStateSummary    = "state_summary"
	OpUpdatePRGI      = "update_district_prgi"
)

// Catalog returns the registered operations with their fixed classes.
func Catalog() []models.Operation {
	return []models.Operation{
		{
			Name:        OpTopDistricts,
			Class:       models.ClassRead,
			Description: "Top N districts with highest PRGI (worst delivery gap)",
			Params:      []string{"n", "time_period"},
		},
		{
			Name:        OpExplainDistrict,
			Class:       models.ClassRead,
			Description: "Explain PRGI trends for a specific district",
			Params:      []string{"district", "month"},
		},
		{
			Name:        OpGrievanceSpikes,
			Class:       models.ClassRead,
			Description: "Months with grievance receipts rising above a threshold percentage",
			Params:      []string{"threshold_pct"},
		},
		{
			Name:        OpStateSummary,
			Class:       models.ClassRead,
			Description: "State-level PDS performance summary with risk classification",
			Params:      []string{"year"},
		},
		{
			Name:        OpUpdatePRGI,
			Class:       models.ClassWrite,
			Description: "Update the PRGI value for a district (admin only)",
			Params:      []string{"district", "value"},
		},
	}
}

// TokenVerifier validates a presented token against an exact operation
// instance and atomically consumes it. Implemented by the policy engine.
type TokenVerifier interface {
	VerifyAndConsume(signed, operation string, args models.Args) (tokenID string, err error)
}

// Result is a completed invocation: the payload for rendering plus the data
// citation carried by read results.
type Result struct {
	Operation string
	TokenID   string
	Data      interface{}
	Citation  *models.Citation
}

// Server executes registered operations against the district store.
type Server struct {
	store    *DistrictStore
	registry *policy.Registry
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewServer creates a tool server. The verifier is consulted for every
// write-class invocation.
func NewServer(store *DistrictStore, registry *policy.Registry, verifier TokenVerifier, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		registry: registry,
		verifier: verifier,
		logger:   logger.Named("tools"),
	}
}

// Invoke executes an operation. Reads run without a token. Writes require a
// token bound to this exact (operation, arguments) instance; the argument
// hash is re-derived here, and the token is consumed atomically before the
// state change so a replayed token can never execute twice. Partial
// execution never occurs: every rejection happens before the store mutates.
func (s *Server) Invoke(ctx context.Context, operation string, args models.Args, signedToken string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.WrapUnavailable("invoke cancelled", err)
	}

	op, ok := s.registry.Lookup(operation)
	if !ok {
		return nil, services.ErrUnknownOperation
	}

	result := &Result{Operation: op.Name}

	if op.Class == models.ClassWrite {
		if signedToken == "" {
			s.logger.Warn("write rejected: no verification token",
				zap.String("operation", op.Name))
			return nil, services.ErrTokenMissing
		}
		tokenID, err := s.verifier.VerifyAndConsume(signedToken, op.Name, args)
		result.TokenID = tokenID
		if err != nil {
			s.logger.Warn("write rejected: verification failed",
				zap.String("operation", op.Name),
				zap.String("token_id", tokenID),
				zap.Error(err))
			return nil, err
		}
	}

	data, citation, err := s.execute(op.Name, args)
	if err != nil {
		return nil, err
	}
	result.Data = data
	result.Citation = citation

	s.logger.Info("operation executed",
		zap.String("operation", op.Name),
		zap.String("class", string(op.Class)),
		zap.String("token_id", result.TokenID))
	return result, nil
}

func (s *Server) execute(operation string, args models.Args) (interface{}, *models.Citation, error) {
	switch operation {
	case OpTopDistricts:
		n := intArg(args, "n", 5)
		period := stringArg(args, "time_period")
		return wrap2(s.store.TopDistricts(n, period))

	case OpExplainDistrict:
		district := stringArg(args, "district")
		if district == "" {
			return nil, nil, services.NewDomainError(services.ErrorTypeValidation,
				"missing required argument: district", nil)
		}
		return wrap2(s.store.ExplainDistrict(district, stringArg(args, "month")))

	case OpGrievanceSpikes:
		return wrap2(s.store.GrievanceSpikes(floatArg(args, "threshold_pct", 30.0)))

	case OpStateSummary:
		return wrap2(s.store.Summarize(stringArg(args, "year")))

	case OpUpdatePRGI:
		district := stringArg(args, "district")
		if district == "" {
			return nil, nil, services.NewDomainError(services.ErrorTypeValidation,
				"missing required argument: district", nil)
		}
		value, ok := numberArg(args, "value")
		if !ok {
			return nil, nil, services.NewDomainError(services.ErrorTypeValidation,
				"missing required argument: value", nil)
		}
		update, err := s.store.UpdatePRGI(district, value)
		if err != nil {
			return nil, nil, err
		}
		return update, nil, nil

	default:
		return nil, nil, services.ErrUnknownOperation
	}
}

func wrap2[T any](data T, citation *models.Citation, err error) (interface{}, *models.Citation, error) {
	if err != nil {
		return nil, nil, err
	}
	return data, citation, nil
}

// Argument accessors tolerate the loose typing of planner-produced argument
// maps (JSON numbers arrive as float64, CLI-sourced values as strings).

func stringArg(args models.Args, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intArg(args models.Args, key string, def int) int {
	if v, ok := numberArg(args, key); ok {
		return int(v)
	}
	return def
}

func floatArg(args models.Args, key string, def float64) float64 {
	if v, ok := numberArg(args, key); ok {
		return v
	}
	return def
}

func numberArg(args models.Args, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
