// Package scan implements the offline content scanner: pattern-based
// detection of personal data and unsafe language in arbitrary text. The
// scanner is a pure function of its input and never makes a network call;
// scanned text must not leave the trust boundary.
package scan

import (
	"regexp"
	"sort"
	"strings"

	"github.com/civinigrani/civigate/models"
)

var (
	// Email pattern - RFC 5322 simplified
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Z|a-z]{2,}\b`)

	// Phone patterns - Indian mobile first, then generic formats
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[6-9][0-9]{9}\b`),                                            // Indian mobile
		regexp.MustCompile(`\b(\+?91[-.\s]?)?[6-9][0-9]{4}[-.\s][0-9]{5}\b`),               // Indian, spaced
		regexp.MustCompile(`\b(\+?1[-.]?)?\(?([0-9]{3})\)?[-.]([0-9]{3})[-.]([0-9]{4})\b`), // US-style
	}

	// Aadhaar pattern - XXXX XXXX XXXX, first digit 2-9
	aadhaarPattern = regexp.MustCompile(`\b[2-9][0-9]{3}[\s-][0-9]{4}[\s-][0-9]{4}\b`)

	// PAN pattern - five letters, four digits, one letter
	panPattern = regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)
)

// DefaultBlockedPhrases is the seed toxicity list carried over from the
// deployed safety policy. Matching is case-insensitive substring search.
var DefaultBlockedPhrases = []string{
	"corrupt politician",
	"vote for",
	"election fraud",
	"bribe paid",
	"commission agent",
	"private phone",
	"kickback",
	"don't vote",
}

// Scanner detects PII and blocked-phrase findings in text. Safe for
// concurrent use; the phrase list is fixed at construction.
type Scanner struct {
	phrases []string
}

// NewScanner creates a scanner with the given blocked-phrase list in
// addition to the built-in PII patterns. Phrases are matched
// case-insensitively. An empty list disables toxicity detection.
func NewScanner(blockedPhrases []string) *Scanner {
	phrases := make([]string, 0, len(blockedPhrases))
	for _, p := range blockedPhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Scanner{phrases: phrases}
}

// NewDefaultScanner creates a scanner with the default blocked-phrase list.
func NewDefaultScanner() *Scanner {
	return NewScanner(DefaultBlockedPhrases)
}

// Scan returns all findings in text, ordered by start position. Scanning is
// deterministic and side-effect free; empty input yields no findings.
func (s *Scanner) Scan(text string) []models.Finding {
	if text == "" {
		return nil
	}

	var findings []models.Finding

	findings = appendMatches(findings, emailPattern, text, models.FindingEmail, models.SeverityMedium)
	for _, p := range phonePatterns {
		findings = appendMatches(findings, p, text, models.FindingPhone, models.SeverityMedium)
	}
	findings = appendMatches(findings, aadhaarPattern, text, models.FindingAadhaar, models.SeverityHigh)
	findings = appendMatches(findings, panPattern, text, models.FindingPAN, models.SeverityHigh)

	lower := strings.ToLower(text)
	for _, phrase := range s.phrases {
		idx := 0
		for {
			pos := strings.Index(lower[idx:], phrase)
			if pos < 0 {
				break
			}
			start := idx + pos
			end := start + len(phrase)
			findings = append(findings, models.Finding{
				Category: models.CategoryToxicity,
				Kind:     models.FindingToxicKeyword,
				Match:    text[start:end],
				StartPos: start,
				EndPos:   end,
				Severity: models.SeverityHigh,
			})
			idx = end
		}
	}

	findings = dedupe(findings)
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].StartPos != findings[j].StartPos {
			return findings[i].StartPos < findings[j].StartPos
		}
		return findings[i].EndPos > findings[j].EndPos
	})
	return findings
}

// HasPII reports whether text contains any personal-data finding.
func (s *Scanner) HasPII(text string) bool {
	for _, f := range s.Scan(text) {
		if f.Category == models.CategoryPII {
			return true
		}
	}
	return false
}

// HasToxicity reports whether text matches the blocked-phrase list.
func (s *Scanner) HasToxicity(text string) bool {
	for _, f := range s.Scan(text) {
		if f.Category == models.CategoryToxicity {
			return true
		}
	}
	return false
}

// Redact replaces every finding's span with a kind-specific placeholder.
// Findings must come from a Scan of the same text.
func Redact(text string, findings []models.Finding) string {
	result, _ := RedactFindings(text, nil, findings)
	return result
}

// RedactFindings replaces each span in redact with its kind placeholder and
// returns the rewritten text together with all findings remapped to
// positions in it. A finding whose span was replaced points at its
// placeholder; other findings shift by the length changes of replacements
// before them. Both lists must come from a Scan of the same text.
func RedactFindings(text string, all, redact []models.Finding) (string, []models.Finding) {
	// Valid, non-overlapping spans in ascending order.
	spans := make([]models.Finding, 0, len(redact))
	ordered := make([]models.Finding, len(redact))
	copy(ordered, redact)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartPos < ordered[j].StartPos
	})
	lastEnd := 0
	for _, f := range ordered {
		if f.StartPos < lastEnd || f.StartPos < 0 || f.EndPos < f.StartPos || f.EndPos > len(text) {
			continue // overlapping or stale span
		}
		spans = append(spans, f)
		lastEnd = f.EndPos
	}

	var b strings.Builder
	newStarts := make([]int, len(spans))
	placeholders := make([]string, len(spans))
	prev := 0
	for i, f := range spans {
		b.WriteString(text[prev:f.StartPos])
		newStarts[i] = b.Len()
		placeholders[i] = redactionString(f.Kind)
		b.WriteString(placeholders[i])
		prev = f.EndPos
	}
	b.WriteString(text[prev:])
	result := b.String()

	shift := func(p int) int {
		d := 0
		for i, f := range spans {
			if f.EndPos <= p {
				d += len(placeholders[i]) - (f.EndPos - f.StartPos)
			}
		}
		return p + d
	}

	var mapped []models.Finding
	if all != nil {
		mapped = make([]models.Finding, 0, len(all))
		for _, f := range all {
			m := f
			if i := spanIndex(spans, f); i >= 0 {
				m.StartPos = newStarts[i]
				m.EndPos = newStarts[i] + len(placeholders[i])
			} else {
				m.StartPos = shift(f.StartPos)
				m.EndPos = shift(f.EndPos)
			}
			mapped = append(mapped, m)
		}
	}
	return result, mapped
}

func spanIndex(spans []models.Finding, f models.Finding) int {
	for i, s := range spans {
		if s.StartPos == f.StartPos && s.EndPos == f.EndPos && s.Kind == f.Kind {
			return i
		}
	}
	return -1
}

func redactionString(kind models.FindingKind) string {
	switch kind {
	case models.FindingEmail:
		return "[EMAIL_REDACTED]"
	case models.FindingPhone:
		return "[PHONE_REDACTED]"
	case models.FindingAadhaar:
		return "[AADHAAR_REDACTED]"
	case models.FindingPAN:
		return "[PAN_REDACTED]"
	case models.FindingToxicKeyword:
		return "[REMOVED]"
	default:
		return "[REDACTED]"
	}
}

func appendMatches(findings []models.Finding, p *regexp.Regexp, text string, kind models.FindingKind, sev models.Severity) []models.Finding {
	for _, match := range p.FindAllStringIndex(text, -1) {
		findings = append(findings, models.Finding{
			Category: models.CategoryPII,
			Kind:     kind,
			Match:    text[match[0]:match[1]],
			StartPos: match[0],
			EndPos:   match[1],
			Severity: sev,
		})
	}
	return findings
}

// dedupe drops findings whose span is covered by another finding of the same
// kind (overlapping phone patterns can double-report a number).
func dedupe(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, 0, len(findings))
	for i, f := range findings {
		drop := false
		for j, g := range findings {
			if i == j || f.Kind != g.Kind {
				continue
			}
			if g.StartPos <= f.StartPos && f.EndPos <= g.EndPos {
				wider := g.EndPos-g.StartPos > f.EndPos-f.StartPos
				if wider || j < i { // identical spans keep the first occurrence
					drop = true
					break
				}
			}
		}
		if !drop {
			out = append(out, f)
		}
	}
	return out
}
