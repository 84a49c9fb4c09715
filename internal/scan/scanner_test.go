package scan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civinigrani/civigate/models"
)

func TestScanner_Scan_PII(t *testing.T) {
	s := NewDefaultScanner()

	tests := []struct {
		name     string
		text     string
		wantKind models.FindingKind
		wantPII  bool
	}{
		{
			name:     "email address",
			text:     "Contact the officer at ramesh.kumar@up.gov.in for details",
			wantKind: models.FindingEmail,
			wantPII:  true,
		},
		{
			name:     "indian mobile number",
			text:     "The dealer's number is 9876543210",
			wantKind: models.FindingPhone,
			wantPII:  true,
		},
		{
			name:     "aadhaar number",
			text:     "Beneficiary Aadhaar 2345 6789 0123 flagged",
			wantKind: models.FindingAadhaar,
			wantPII:  true,
		},
		{
			name:     "pan number",
			text:     "PAN ABCDE1234F on file",
			wantKind: models.FindingPAN,
			wantPII:  true,
		},
		{
			name:    "clean text",
			text:    "Which districts have the highest PRGI this month?",
			wantPII: false,
		},
		{
			name:    "number starting below six is not a mobile",
			text:    "allocation was 1234567890 quintals",
			wantPII: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := s.Scan(tt.text)

			assert.Equal(t, tt.wantPII, s.HasPII(tt.text))
			if !tt.wantPII {
				for _, f := range findings {
					assert.NotEqual(t, models.CategoryPII, f.Category)
				}
				return
			}

			require.NotEmpty(t, findings)
			found := false
			for _, f := range findings {
				if f.Kind == tt.wantKind {
					found = true
					assert.Equal(t, models.CategoryPII, f.Category)
					assert.Equal(t, f.Match, tt.text[f.StartPos:f.EndPos])
				}
			}
			assert.True(t, found, "expected a %s finding", tt.wantKind)
		})
	}
}

func TestScanner_Scan_Toxicity(t *testing.T) {
	s := NewDefaultScanner()

	findings := s.Scan("Tell me which corrupt politician runs the PDS here")
	require.NotEmpty(t, findings)
	assert.Equal(t, models.CategoryToxicity, findings[0].Category)
	assert.Equal(t, models.FindingToxicKeyword, findings[0].Kind)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.True(t, s.HasToxicity("The BRIBE PAID to the dealer"), "matching is case-insensitive")
	assert.False(t, s.HasToxicity("monthly allocation summary"))
}

func TestScanner_Scan_CustomPhrases(t *testing.T) {
	s := NewScanner([]string{"secret handshake", "  ", ""})

	assert.True(t, s.HasToxicity("the secret handshake happened"))
	// Default phrases are not active on a custom list.
	assert.False(t, s.HasToxicity("bribe paid yesterday"))
}

func TestScanner_Scan_Deterministic(t *testing.T) {
	s := NewDefaultScanner()
	text := "Call 9876543210 or mail a@b.co about the bribe paid in Agra"

	first := s.Scan(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Scan(text))
	}
}

func TestScanner_Scan_Empty(t *testing.T) {
	s := NewDefaultScanner()
	assert.Empty(t, s.Scan(""))
}

func TestScanner_Scan_OrderedByPosition(t *testing.T) {
	s := NewDefaultScanner()
	findings := s.Scan("mail a@b.co, phone 9876543210, PAN ABCDE1234F")

	require.GreaterOrEqual(t, len(findings), 3)
	for i := 1; i < len(findings); i++ {
		assert.LessOrEqual(t, findings[i-1].StartPos, findings[i].StartPos)
	}
}

func TestRedact(t *testing.T) {
	s := NewDefaultScanner()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "phone redacted",
			text: "Share dealer phone 9876543210 please",
			want: "Share dealer phone [PHONE_REDACTED] please",
		},
		{
			name: "email redacted",
			text: "write to x@y.org now",
			want: "write to [EMAIL_REDACTED] now",
		},
		{
			name: "multiple findings",
			text: "a@b.co and 9876543210",
			want: "[EMAIL_REDACTED] and [PHONE_REDACTED]",
		},
		{
			name: "nothing to redact",
			text: "PRGI for Lucknow is 0.27",
			want: "PRGI for Lucknow is 0.27",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.text, s.Scan(tt.text))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedactFindings_RemapsSpans(t *testing.T) {
	s := NewDefaultScanner()
	text := "mail a@b.co and vote for him at 9876543210"

	findings := s.Scan(text)
	var pii []models.Finding
	for _, f := range findings {
		if f.Category == models.CategoryPII {
			pii = append(pii, f)
		}
	}

	redacted, mapped := RedactFindings(text, findings, pii)
	require.Len(t, mapped, len(findings))

	for _, f := range mapped {
		require.GreaterOrEqual(t, f.StartPos, 0)
		require.LessOrEqual(t, f.EndPos, len(redacted))
		got := redacted[f.StartPos:f.EndPos]
		switch f.Kind {
		case models.FindingEmail:
			assert.Equal(t, "[EMAIL_REDACTED]", got)
		case models.FindingPhone:
			assert.Equal(t, "[PHONE_REDACTED]", got)
		case models.FindingToxicKeyword:
			// Not redacted; the span must still cover the phrase after
			// earlier replacements shifted the text.
			assert.Equal(t, "vote for", got)
		}
	}
}

func TestRedact_NoRawValueRemains(t *testing.T) {
	s := NewDefaultScanner()
	text := "Aadhaar 2345 6789 0123 and PAN ABCDE1234F leaked"

	redacted := Redact(text, s.Scan(text))
	assert.NotContains(t, redacted, "2345 6789 0123")
	assert.NotContains(t, redacted, "ABCDE1234F")
	assert.True(t, strings.Contains(redacted, "[AADHAAR_REDACTED]"))
	assert.True(t, strings.Contains(redacted, "[PAN_REDACTED]"))
}
