package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services/tools"
)

func TestKeywordProposer_Propose(t *testing.T) {
	p := NewKeywordProposer()

	tests := []struct {
		name     string
		query    string
		wantOp   string
		wantArgs models.Args
		wantNil  bool
	}{
		{
			name:     "top districts with count",
			query:    "Show me the top 3 districts by PRGI",
			wantOp:   tools.OpTopDistricts,
			wantArgs: models.Args{"n": 3.0},
		},
		{
			name:     "worst districts default count",
			query:    "which are the worst performing districts?",
			wantOp:   tools.OpTopDistricts,
			wantArgs: models.Args{"n": 5.0},
		},
		{
			name:     "update takes precedence",
			query:    "Update Lucknow PRGI to 0.9",
			wantOp:   tools.OpUpdatePRGI,
			wantArgs: models.Args{"district": "Lucknow", "value": 0.9},
		},
		{
			name:   "grievance spikes",
			query:  "Any grievance spikes last quarter?",
			wantOp: tools.OpGrievanceSpikes,
		},
		{
			name:     "district trend",
			query:    "How is Varanasi doing?",
			wantOp:   tools.OpExplainDistrict,
			wantArgs: models.Args{"district": "Varanasi"},
		},
		{
			name:   "state summary",
			query:  "Give me the overall state performance",
			wantOp: tools.OpStateSummary,
		},
		{
			name:     "average routes to summary with year",
			query:    "what was the average PRGI in 2024?",
			wantOp:   tools.OpStateSummary,
			wantArgs: models.Args{"year": "2024"},
		},
		{
			name:    "no actionable operation",
			query:   "hello there",
			wantNil: true,
		},
		{
			name:    "explain without a known district",
			query:   "explain the methodology",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Propose(context.Background(), tt.query, models.RoleAnalyst, nil, "")
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, plan)
				return
			}
			require.NotNil(t, plan)
			assert.Equal(t, tt.wantOp, plan.Operation)
			if tt.wantArgs != nil {
				assert.Equal(t, tt.wantArgs, plan.Args)
			}
		})
	}
}

func TestKeywordProposer_ProposesRegardlessOfRole(t *testing.T) {
	// The proposer is untrusted and knows nothing about policy: an analyst
	// query can propose a write, which the engine then denies.
	p := NewKeywordProposer()

	plan, err := p.Propose(context.Background(),
		"update agra prgi to 0.5", models.RoleAnalyst, nil, "")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, tools.OpUpdatePRGI, plan.Operation)
}
