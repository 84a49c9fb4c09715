package agent

import (
	"fmt"
	"strings"

	"github.com/civinigrani/civigate/services/tools"
)

// formatResult renders a tool result into the final answer text. Rendering
// is plain text with light markdown, matching what the dashboard displays.
func formatResult(result *tools.Result) string {
	switch data := result.Data.(type) {
	case []tools.DistrictRank:
		if len(data) == 0 {
			return "No district data available."
		}
		var b strings.Builder
		b.WriteString("Top districts by PRGI (delivery gap):\n")
		for i, d := range data {
			fmt.Fprintf(&b, "%d. %s - PRGI %.3f (allocated %.0f, distributed %.0f)\n",
				i+1, d.District, d.PRGI, d.Allocation, d.Distribution)
		}
		return appendCitation(b.String(), result)

	case *tools.Trend:
		var b strings.Builder
		fmt.Fprintf(&b, "%s PRGI trend:\n", data.District)
		fmt.Fprintf(&b, "Current PRGI: %.3f (trend: %s, change: %+.3f)\n",
			data.CurrentPRGI, data.Direction, data.Change)
		if len(data.RecentMonths) > 0 {
			b.WriteString("Recent months:\n")
			for _, m := range data.RecentMonths {
				fmt.Fprintf(&b, "- %s: PRGI %.3f\n", m.Month, m.PRGI)
			}
		}
		return appendCitation(b.String(), result)

	case []tools.Spike:
		if len(data) == 0 {
			return "No significant grievance spikes detected."
		}
		var b strings.Builder
		b.WriteString("Grievance spikes detected:\n")
		for _, s := range data {
			fmt.Fprintf(&b, "- %s: %d receipts (+%.1f%%)\n", s.Month, s.Receipts, s.IncreasePct)
		}
		return appendCitation(b.String(), result)

	case *tools.StateSummary:
		var b strings.Builder
		b.WriteString("Uttar Pradesh PDS performance:\n")
		fmt.Fprintf(&b, "- Districts: %d\n", data.TotalDistricts)
		fmt.Fprintf(&b, "- Avg PRGI: %.3f (worst %.3f, best %.3f)\n",
			data.AvgPRGI, data.WorstPRGI, data.BestPRGI)
		fmt.Fprintf(&b, "- Total allocated: %.0f, distributed: %.0f\n",
			data.TotalAllocation, data.TotalDistribution)
		fmt.Fprintf(&b, "Risk classification: %d high, %d medium, %d low\n",
			data.HighRisk, data.MediumRisk, data.LowRisk)
		return appendCitation(b.String(), result)

	case *tools.UpdateResult:
		return fmt.Sprintf("Updated %s PRGI from %.3f to %.3f.",
			data.District, data.OldPRGI, data.NewPRGI)

	case string:
		return appendCitation(data, result)

	default:
		return appendCitation("Data retrieved.", result)
	}
}

func appendCitation(answer string, result *tools.Result) string {
	if result.Citation == nil {
		return answer
	}
	c := result.Citation
	line := fmt.Sprintf("\nSource: %s", c.Source)
	if c.Period != "" {
		line += fmt.Sprintf(" (%s)", c.Period)
	}
	return answer + line
}

// noPlanAnswer is returned when the proposer finds no actionable operation.
const noPlanAnswer = "I could not map that question to a data tool. " +
	"Try: 'Show top 5 districts', 'Average PRGI in state', or 'Explain PRGI in Lucknow'."

// toxicOutputNotice replaces the response when high-severity unsafe content
// is found in the final text.
const toxicOutputNotice = "The generated response was withheld by the content safety policy."
