package models

// Plan is a candidate operation plus arguments proposed for execution by the
// untrusted plan proposer. It has not been authorized.
type Plan struct {
	Operation string `json:"operation"`
	Args      Args   `json:"args"`
}

// QueryRequest is the caller-facing request body for an agent query.
type QueryRequest struct {
	Query      string `json:"query" validate:"required,min=1,max=4000"`
	Role       Role   `json:"role" validate:"required"`
	IdentityID string `json:"identity_id,omitempty"`
	Context    string `json:"context,omitempty" validate:"max=8000"`
}

// QueryResponse is the caller-facing result: final text, verification badge,
// and — on denial — a human-readable reason that never echoes the denied
// operation's raw arguments.
type QueryResponse struct {
	RequestID    string    `json:"request_id"`
	Answer       string    `json:"answer"`
	Badge        Badge     `json:"badge"`
	DenialReason string    `json:"denial_reason,omitempty"`
	Findings     []Finding `json:"findings,omitempty"`
	Citation     *Citation `json:"citation,omitempty"`
}

// Citation identifies the data source backing a read result.
type Citation struct {
	Source    string `json:"source"`
	Period    string `json:"period,omitempty"`
	Districts int    `json:"districts_analyzed,omitempty"`
	Points    int    `json:"data_points,omitempty"`
}
