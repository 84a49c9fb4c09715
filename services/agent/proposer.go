package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services"
)

// Proposer turns a natural-language query into a candidate operation plus
// arguments. It is untrusted: it proposes, it never authorizes. A nil plan
// with nil error means no actionable operation was found.
type Proposer interface {
	Propose(ctx context.Context, query string, role models.Role, operations []models.Operation, contextText string) (*models.Plan, error)
}

// HTTPProposer calls an externally hosted planning service.
type HTTPProposer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPProposer creates a proposer posting to endpoint with the given
// request timeout.
func NewHTTPProposer(endpoint string, timeout time.Duration) *HTTPProposer {
	return &HTTPProposer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type proposeRequest struct {
	Query      string             `json:"query"`
	Role       models.Role        `json:"role"`
	Operations []models.Operation `json:"operations"`
	Context    string             `json:"context,omitempty"`
}

type proposeResponse struct {
	Plan *models.Plan `json:"plan"`
}

// Propose posts the query and operation catalog to the planning service.
// Network faults and 5xx responses surface as transient upstream failures;
// a 200 with a null plan means no actionable operation.
func (p *HTTPProposer) Propose(ctx context.Context, query string, role models.Role, operations []models.Operation, contextText string) (*models.Plan, error) {
	body, err := json.Marshal(proposeRequest{
		Query:      query,
		Role:       role,
		Operations: operations,
		Context:    contextText,
	})
	if err != nil {
		return nil, services.WrapInternal("encode propose request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.WrapInternal("build propose request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, services.WrapUnavailable("plan proposer unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, services.WrapUnavailable(fmt.Sprintf("plan proposer returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.WrapUpstream(fmt.Sprintf("plan proposer returned %d", resp.StatusCode), nil)
	}

	var decoded proposeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.WrapUpstream("malformed proposer response", err)
	}
	return decoded.Plan, nil
}

// ReliableProposer wraps a Proposer with a circuit breaker and bounded
// exponential-backoff retries. Only transient faults are retried; a clean
// "no plan" answer passes straight through.
type ReliableProposer struct {
	next     Proposer
	cb       *gobreaker.CircuitBreaker
	attempts uint
	timeout  time.Duration
}

// NewReliableProposer wraps next with attempts total tries and a per-try
// timeout.
func NewReliableProposer(next Proposer, attempts int, timeout time.Duration) *ReliableProposer {
	if attempts < 1 {
		attempts = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "plan-proposer",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &ReliableProposer{
		next:     next,
		cb:       cb,
		attempts: uint(attempts),
		timeout:  timeout,
	}
}

// Propose delegates with retry and circuit breaking. Exhausted retries and
// an open breaker both surface as transient upstream failures for the
// orchestrator to convert into an error badge.
func (p *ReliableProposer) Propose(ctx context.Context, query string, role models.Role, operations []models.Operation, contextText string) (*models.Plan, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		var plan *models.Plan

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(p.attempts),
			retry.RetryIf(services.IsRetryableError),
			retry.LastErrorOnly(true),
		)
		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			var callErr error
			plan, callErr = p.next.Propose(tCtx, query, role, operations, contextText)
			if tCtx.Err() != nil && callErr != nil && !services.IsRetryableError(callErr) {
				return services.WrapUnavailable("plan proposer timed out", callErr)
			}
			return callErr
		})
		return plan, retryErr
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, services.WrapUnavailable("plan proposer circuit open", err)
		}
		return nil, err
	}
	plan, _ := result.(*models.Plan)
	return plan, nil
}
