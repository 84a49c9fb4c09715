package agent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services/tools"
)

// KeywordProposer is the in-process fallback planner: a keyword and pattern
// matcher over the query text. It is the default when no external planning
// service is configured and deliberately knows nothing about policy.
type KeywordProposer struct {
	districts []string
}

// Districts the parser recognizes for district-scoped queries.
var defaultDistricts = []string{
	"lucknow", "agra", "kanpur", "varanasi", "allahabad",
	"meerut", "gorakhpur", "mau", "mahoba", "jhansi",
}

var (
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	yearPattern   = regexp.MustCompile(`20\d{2}`)
)

// NewKeywordProposer creates the fallback planner.
func NewKeywordProposer() *KeywordProposer {
	return &KeywordProposer{districts: defaultDistricts}
}

// Propose maps the query onto one of the registered operations. A nil plan
// means the query asks nothing a tool can answer.
func (p *KeywordProposer) Propose(_ context.Context, query string, _ models.Role, _ []models.Operation, _ string) (*models.Plan, error) {
	q := strings.ToLower(query)
	numbers := numberPattern.FindAllString(q, -1)

	// Update requests take precedence: "update Lucknow PRGI to 0.9"
	if containsAny(q, "update", "set", "change") && strings.Contains(q, "prgi") {
		district := p.findDistrict(q)
		value, okValue := lastDecimal(numbers)
		if district != "" && okValue {
			return &models.Plan{
				Operation: tools.OpUpdatePRGI,
				Args:      models.Args{"district": district, "value": value},
			}, nil
		}
	}

	// Top/worst districts
	if containsAny(q, "top", "worst", "best", "highest") &&
		(strings.Contains(q, "district") || strings.Contains(q, "prgi")) {
		n := 5
		if len(numbers) > 0 {
			if parsed, err := strconv.Atoi(numbers[0]); err == nil {
				n = parsed
			}
		}
		return &models.Plan{
			Operation: tools.OpTopDistricts,
			Args:      models.Args{"n": float64(n)},
		}, nil
	}

	// Averages and state performance
	if containsAny(q, "average", "mean", "avg") &&
		containsAny(q, "prgi", "pgsm", "state", "performance") {
		return p.summaryPlan(query), nil
	}

	// Grievance spikes
	if containsAny(q, "spike", "grievance", "increase") {
		return &models.Plan{Operation: tools.OpGrievanceSpikes, Args: models.Args{}}, nil
	}

	// District-specific trends
	if district := p.findDistrict(q); district != "" || strings.Contains(q, "explain") {
		if district == "" {
			return nil, nil // "explain" without a recognizable district
		}
		return &models.Plan{
			Operation: tools.OpExplainDistrict,
			Args:      models.Args{"district": district},
		}, nil
	}

	// State summary / overview
	if containsAny(q, "summary", "state", "overall", "total", "performance") {
		return p.summaryPlan(query), nil
	}

	return nil, nil
}

func (p *KeywordProposer) summaryPlan(query string) *models.Plan {
	args := models.Args{}
	if year := yearPattern.FindString(query); year != "" {
		args["year"] = year
	}
	return &models.Plan{Operation: tools.OpStateSummary, Args: args}
}

func (p *KeywordProposer) findDistrict(q string) string {
	for _, d := range p.districts {
		if strings.Contains(q, d) {
			return strings.ToUpper(d[:1]) + d[1:]
		}
	}
	return ""
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// lastDecimal returns the final number in the query, preferring a fractional
// value ("update ... to 0.9" carries the target last).
func lastDecimal(numbers []string) (float64, bool) {
	for i := len(numbers) - 1; i >= 0; i-- {
		if v, err := strconv.ParseFloat(numbers[i], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
