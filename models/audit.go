package models

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the policy engine's verdict recorded for every query.
type Decision string

const (
	DecisionAllowed      Decision = "allowed"
	DecisionDenied       Decision = "denied"
	DecisionNoPlan       Decision = "no_plan"       // proposer yielded no actionable operation
	DecisionInputBlocked Decision = "input_blocked" // query stopped by content safety before planning
)

// Outcome records what happened after the decision.
type Outcome string

const (
	OutcomeInvoked      Outcome = "invoked"
	OutcomeRejected     Outcome = "rejected"
	OutcomeNotAttempted Outcome = "not_attempted"
	OutcomeError        Outcome = "error"
)

// Badge is the verification status shown to the caller, derived solely from
// the path the orchestrator's state machine took.
type Badge string

const (
	BadgeVerified   Badge = "verified"
	BadgeBlocked    Badge = "blocked"
	BadgeUnverified Badge = "unverified"
	BadgeError      Badge = "error"
)

// AuditRecord is the write-once trail entry produced exactly once per query.
// Argument values are redacted on the denial path; only argument keys are
// retained there.
type AuditRecord struct {
	ID             uuid.UUID `json:"id"`
	RequestID      string    `json:"request_id"`
	IdentityID     string    `json:"identity_id"`
	Role           Role      `json:"role"`
	Operation      string    `json:"operation,omitempty"`
	ArgKeys        []string  `json:"arg_keys,omitempty"`
	Args           Args      `json:"args,omitempty"` // populated only on the allow path
	Decision       Decision  `json:"decision"`
	DenialReason   string    `json:"denial_reason,omitempty"`
	TokenID        string    `json:"token_id,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	Badge          Badge     `json:"badge"`
	InputFindings  []Finding `json:"input_findings,omitempty"`
	OutputFindings []Finding `json:"output_findings,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	DurationMs     int64     `json:"duration_ms"`
}

// NewAuditRecord creates a trail entry for a query by the given identity.
func NewAuditRecord(requestID string, id Identity) *AuditRecord {
	return &AuditRecord{
		ID:         uuid.New(),
		RequestID:  requestID,
		IdentityID: id.ID,
		Role:       id.Role,
		Outcome:    OutcomeNotAttempted,
		Timestamp:  time.Now(),
	}
}
