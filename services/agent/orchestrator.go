// Package agent implements the orchestrator driving the Plan -> Token ->
// Invoke sequence for each query, plus the plan proposers it consumes.
package agent

import (
	"context"
	"sort"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civinigrani/civigate/internal/observability"
	"github.com/civinigrani/civigate/internal/scan"
	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services"
	"github.com/civinigrani/civigate/services/tools"
)

// PolicyEngine is the authorization decision point consulted for every plan.
type PolicyEngine interface {
	Authorize(ctx context.Context, identity models.Identity, operation string, args models.Args) (*models.VerificationToken, error)
	Catalog() []models.Operation
}

// ToolInvoker executes operations; the only component that mutates state.
type ToolInvoker interface {
	Invoke(ctx context.Context, operation string, args models.Args, signedToken string) (*tools.Result, error)
}

// Trail receives exactly one audit record per query.
type Trail interface {
	Record(rec *models.AuditRecord)
}

// Disposition configures what the orchestrator does with scan findings.
// Findings never block inside the scanner; this is the single place that
// policy lives.
type Disposition struct {
	BlockToxicInput     bool
	RedactPII           bool
	WithholdToxicOutput bool
}

// DefaultDisposition mirrors the deployed safety policy: toxic queries are
// refused, PII is redacted, toxic output is withheld.
func DefaultDisposition() Disposition {
	return Disposition{
		BlockToxicInput:     true,
		RedactPII:           true,
		WithholdToxicOutput: true,
	}
}

// Orchestrator runs the per-query state machine:
// Received -> Planned -> Authorized|Denied -> Invoked|Rejected -> Scanned -> Responded.
// The machine always terminates in Responded and emits exactly one audit
// record. Queries are independent units of work; concurrent Run calls share
// only the immutable policy table and the synchronized token store.
type Orchestrator struct {
	proposer    Proposer
	engine      PolicyEngine
	invoker     ToolInvoker
	scanner     *scan.Scanner
	trail       Trail
	metrics     *observability.Metrics
	disposition Disposition
	attempts    int
	logger      *zap.Logger
}

// NewOrchestrator wires the pipeline. attempts bounds retries of transient
// tool-infrastructure faults (denials are never retried).
func NewOrchestrator(
	proposer Proposer,
	engine PolicyEngine,
	invoker ToolInvoker,
	scanner *scan.Scanner,
	trail Trail,
	metrics *observability.Metrics,
	disposition Disposition,
	attempts int,
	logger *zap.Logger,
) *Orchestrator {
	if attempts < 1 {
		attempts = 1
	}
	return &Orchestrator{
		proposer:    proposer,
		engine:      engine,
		invoker:     invoker,
		scanner:     scanner,
		trail:       trail,
		metrics:     metrics,
		disposition: disposition,
		attempts:    attempts,
		logger:      logger.Named("orchestrator"),
	}
}

// Run processes one query to its terminal state and returns the caller-facing
// response. It never returns an error: every failure path becomes a response
// with the appropriate badge.
func (o *Orchestrator) Run(ctx context.Context, req models.QueryRequest) *models.QueryResponse {
	start := time.Now()
	requestID := uuid.New().String()

	identity := models.Identity{ID: req.IdentityID, Role: req.Role}
	if identity.ID == "" {
		identity.ID = "caller-" + string(req.Role)
	}

	rec := models.NewAuditRecord(requestID, identity)
	resp := &models.QueryResponse{RequestID: requestID}

	// Unknown roles collapse to a single label value so caller-supplied
	// role strings cannot grow metric cardinality.
	roleLabel := "unknown"
	if identity.Role.IsKnown() {
		roleLabel = string(identity.Role)
	}

	defer func() {
		rec.Badge = resp.Badge
		rec.DurationMs = time.Since(start).Milliseconds()
		o.trail.Record(rec)
		o.metrics.QueriesTotal.WithLabelValues(roleLabel, string(resp.Badge)).Inc()
		o.metrics.QueryDuration.WithLabelValues(string(resp.Badge)).Observe(time.Since(start).Seconds())
	}()

	// Received: screen the incoming query before any planning.
	inputFindings := o.scanner.Scan(req.Query)
	rec.InputFindings = inputFindings
	o.countFindings(inputFindings, "input")

	if o.disposition.BlockToxicInput && hasHighToxicity(inputFindings) {
		rec.Decision = models.DecisionInputBlocked
		rec.DenialReason = "query blocked by content safety policy"
		o.metrics.DecisionsTotal.WithLabelValues(string(rec.Decision)).Inc()

		resp.Badge = models.BadgeBlocked
		resp.DenialReason = rec.DenialReason
		resp.Answer = "Your query was blocked by the content safety policy."
		o.logger.Warn("query blocked at input scan",
			zap.String("request_id", requestID),
			zap.String("role", string(identity.Role)))
		return o.finish(resp, rec)
	}

	// Received -> Planned
	plan, err := o.proposer.Propose(ctx, req.Query, identity.Role, o.engine.Catalog(), req.Context)
	if err != nil {
		rec.Decision = models.DecisionNoPlan
		rec.Outcome = models.OutcomeError
		rec.Error = err.Error()
		o.metrics.DecisionsTotal.WithLabelValues(string(rec.Decision)).Inc()

		resp.Badge = models.BadgeError
		resp.Answer = "The planning service is unavailable. Please retry shortly."
		o.logger.Error("plan proposal failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return o.finish(resp, rec)
	}
	if plan == nil {
		rec.Decision = models.DecisionNoPlan
		o.metrics.DecisionsTotal.WithLabelValues(string(rec.Decision)).Inc()

		resp.Badge = models.BadgeUnverified
		resp.Answer = noPlanAnswer
		return o.finish(resp, rec)
	}

	rec.Operation = plan.Operation
	rec.ArgKeys = argKeys(plan.Args)

	// Planned -> Authorized|Denied
	token, err := o.engine.Authorize(ctx, identity, plan.Operation, plan.Args)
	if err != nil {
		// Denial-path audit entries carry argument keys only; values are
		// redacted as a conservative default.
		rec.Decision = models.DecisionDenied
		rec.DenialReason = denialReason(err)
		o.metrics.DecisionsTotal.WithLabelValues(string(rec.Decision)).Inc()

		resp.Badge = models.BadgeBlocked
		resp.DenialReason = rec.DenialReason
		resp.Answer = "Action blocked: " + rec.DenialReason + "."
		o.logger.Warn("authorization denied",
			zap.String("request_id", requestID),
			zap.String("operation", plan.Operation),
			zap.String("role", string(identity.Role)),
			zap.String("reason", rec.DenialReason))
		return o.finish(resp, rec)
	}

	rec.Decision = models.DecisionAllowed
	rec.Args = plan.Args
	rec.TokenID = token.ID
	o.metrics.DecisionsTotal.WithLabelValues(string(rec.Decision)).Inc()
	o.metrics.TokensIssued.Inc()

	// Authorized -> Invoked|Rejected
	result, err := o.invoke(ctx, plan, token.Signed)
	switch {
	case err == nil:
		rec.Outcome = models.OutcomeInvoked
		resp.Badge = models.BadgeVerified
		resp.Answer = formatResult(result)
		resp.Citation = result.Citation

	case services.IsDenialError(err):
		rec.Outcome = models.OutcomeRejected
		rec.Error = err.Error()
		o.metrics.TokensRejected.WithLabelValues(string(services.GetErrorType(err))).Inc()

		resp.Badge = models.BadgeBlocked
		resp.DenialReason = "invalid or stale verification"
		resp.Answer = "Action rejected: invalid or stale verification."
		o.logger.Warn("invocation rejected",
			zap.String("request_id", requestID),
			zap.String("operation", plan.Operation),
			zap.Error(err))

	default:
		rec.Outcome = models.OutcomeError
		rec.Error = err.Error()

		resp.Badge = models.BadgeError
		resp.Answer = "The data tool failed to complete. No changes were applied."
		o.logger.Error("invocation failed",
			zap.String("request_id", requestID),
			zap.String("operation", plan.Operation),
			zap.Error(err))
	}

	return o.finish(resp, rec)
}

// invoke calls the tool server, retrying only transient infrastructure
// faults. Policy and token rejections are final decisions.
func (o *Orchestrator) invoke(ctx context.Context, plan *models.Plan, signedToken string) (*tools.Result, error) {
	var result *tools.Result
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(o.attempts)),
		retry.RetryIf(services.IsRetryableError),
		retry.LastErrorOnly(true),
	)
	err := r.Do(func() error {
		var callErr error
		result, callErr = o.invoker.Invoke(ctx, plan.Operation, plan.Args, signedToken)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finish is the Scanned -> Responded transition: scan the final text the
// caller will see (including error explanations) and apply disposition.
func (o *Orchestrator) finish(resp *models.QueryResponse, rec *models.AuditRecord) *models.QueryResponse {
	outputFindings := o.scanner.Scan(resp.Answer)
	rec.OutputFindings = outputFindings
	o.countFindings(outputFindings, "output")

	switch {
	case o.disposition.WithholdToxicOutput && hasHighToxicity(outputFindings):
		// The caller never sees the withheld text, so spans into it would
		// be meaningless.
		resp.Answer = toxicOutputNotice
		resp.Findings = clearSpans(outputFindings)
	case o.disposition.RedactPII:
		// Remap spans so they point into the redacted answer, not the
		// pre-redaction text.
		resp.Answer, resp.Findings = scan.RedactFindings(resp.Answer, outputFindings, piiOnly(outputFindings))
	default:
		resp.Findings = outputFindings
	}
	return resp
}

func clearSpans(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, len(findings))
	copy(out, findings)
	for i := range out {
		out[i].StartPos, out[i].EndPos = 0, 0
	}
	return out
}

func (o *Orchestrator) countFindings(findings []models.Finding, direction string) {
	for _, f := range findings {
		o.metrics.FindingsTotal.WithLabelValues(string(f.Category), direction).Inc()
	}
}

// denialReason maps an authorization error to the human-readable reason
// surfaced to the caller. Reasons are static strings and never contain the
// denied operation's raw arguments.
func denialReason(err error) string {
	switch {
	case services.IsUnknownIdentityError(err):
		return "unknown identity"
	case services.IsUnknownOperationError(err):
		return "unknown operation"
	case services.IsPolicyDeniedError(err):
		return "role not permitted for operation class"
	default:
		return "authorization failed"
	}
}

func hasHighToxicity(findings []models.Finding) bool {
	for _, f := range findings {
		if f.Category == models.CategoryToxicity && f.Severity == models.SeverityHigh {
			return true
		}
	}
	return false
}

func piiOnly(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Category == models.CategoryPII {
			out = append(out, f)
		}
	}
	return out
}

func argKeys(args models.Args) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
