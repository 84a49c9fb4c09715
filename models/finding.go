package models

// FindingCategory groups detections into personal-data and unsafe-language
// families. Disposition policy lives in the orchestrator, not the scanner.
type FindingCategory string

const (
	CategoryPII      FindingCategory = "pii"
	CategoryToxicity FindingCategory = "toxicity"
)

// FindingKind identifies the concrete pattern that matched.
type FindingKind string

const (
	FindingEmail        FindingKind = "email"
	FindingPhone        FindingKind = "phone"
	FindingAadhaar      FindingKind = "aadhaar"
	FindingPAN          FindingKind = "pan"
	FindingToxicKeyword FindingKind = "toxic_keyword"
)

// Severity indicates how confidently a finding should drive disposition.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Finding is a single detected instance of sensitive or unsafe content.
type Finding struct {
	Category FindingCategory `json:"category"`
	Kind     FindingKind     `json:"kind"`
	Match    string          `json:"-"` // raw matched text, kept out of responses
	StartPos int             `json:"start_pos"`
	EndPos   int             `json:"end_pos"`
	Severity Severity        `json:"severity"`
}
