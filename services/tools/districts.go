package tools

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services"
)

// MonthMetric is one district-month observation of the delivery-gap index.
type MonthMetric struct {
	Month        string  `json:"month"` // YYYY-MM
	PRGI         float64 `json:"prgi"`
	Allocation   float64 `json:"allocation"`
	Distribution float64 `json:"distribution"`
}

// GrievanceMonth is one month of grievance receipts.
type GrievanceMonth struct {
	Month    string `json:"month"`
	Receipts int    `json:"receipts"`
}

// DistrictStore holds the PRGI and grievance series the read tools query and
// the single write tool mutates. Writes are single-record updates guarded by
// a mutex; a rejected write leaves the prior state intact.
type DistrictStore struct {
	mu         sync.RWMutex
	prgi       map[string][]MonthMetric // keyed by lowercase district name
	names      map[string]string        // lowercase -> display name
	grievances []GrievanceMonth
}

// NewDistrictStore creates a store over the given series. District names are
// matched case-insensitively.
func NewDistrictStore(prgi map[string][]MonthMetric, grievances []GrievanceMonth) *DistrictStore {
	store := &DistrictStore{
		prgi:       make(map[string][]MonthMetric, len(prgi)),
		names:      make(map[string]string, len(prgi)),
		grievances: append([]GrievanceMonth(nil), grievances...),
	}
	for name, series := range prgi {
		key := strings.ToLower(name)
		sorted := append([]MonthMetric(nil), series...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Month < sorted[j].Month })
		store.prgi[key] = sorted
		store.names[key] = name
	}
	sort.Slice(store.grievances, func(i, j int) bool {
		return store.grievances[i].Month < store.grievances[j].Month
	})
	return store
}

// NewSeededDistrictStore creates a store preloaded with the Uttar Pradesh
// sample series used by the dashboard and in tests.
func NewSeededDistrictStore() *DistrictStore {
	prgi := map[string][]MonthMetric{
		"Lucknow": {
			{Month: "2024-08", PRGI: 0.21, Allocation: 12000, Distribution: 9480},
			{Month: "2024-09", PRGI: 0.24, Allocation: 12100, Distribution: 9196},
			{Month: "2024-10", PRGI: 0.27, Allocation: 12050, Distribution: 8797},
		},
		"Agra": {
			{Month: "2024-08", PRGI: 0.12, Allocation: 9800, Distribution: 8624},
			{Month: "2024-09", PRGI: 0.11, Allocation: 9900, Distribution: 8811},
			{Month: "2024-10", PRGI: 0.10, Allocation: 9850, Distribution: 8865},
		},
		"Kanpur": {
			{Month: "2024-08", PRGI: 0.33, Allocation: 11000, Distribution: 7370},
			{Month: "2024-09", PRGI: 0.35, Allocation: 11200, Distribution: 7280},
			{Month: "2024-10", PRGI: 0.38, Allocation: 11150, Distribution: 6913},
		},
		"Varanasi": {
			{Month: "2024-08", PRGI: 0.18, Allocation: 8700, Distribution: 7134},
			{Month: "2024-09", PRGI: 0.16, Allocation: 8750, Distribution: 7350},
			{Month: "2024-10", PRGI: 0.17, Allocation: 8800, Distribution: 7304},
		},
		"Gorakhpur": {
			{Month: "2024-08", PRGI: 0.29, Allocation: 7600, Distribution: 5396},
			{Month: "2024-09", PRGI: 0.31, Allocation: 7650, Distribution: 5278},
			{Month: "2024-10", PRGI: 0.30, Allocation: 7700, Distribution: 5390},
		},
		"Meerut": {
			{Month: "2024-08", PRGI: 0.09, Allocation: 8200, Distribution: 7462},
			{Month: "2024-09", PRGI: 0.08, Allocation: 8250, Distribution: 7590},
			{Month: "2024-10", PRGI: 0.08, Allocation: 8300, Distribution: 7636},
		},
	}
	grievances := []GrievanceMonth{
		{Month: "2024-05", Receipts: 1180},
		{Month: "2024-06", Receipts: 1225},
		{Month: "2024-07", Receipts: 1710},
		{Month: "2024-08", Receipts: 1655},
		{Month: "2024-09", Receipts: 2310},
		{Month: "2024-10", Receipts: 2280},
	}
	return NewDistrictStore(prgi, grievances)
}

// DistrictRank is one row of a top-districts result.
type DistrictRank struct {
	District     string  `json:"district"`
	PRGI         float64 `json:"prgi"`
	Allocation   float64 `json:"allocation"`
	Distribution float64 `json:"distribution"`
}

// TopDistricts returns the n districts with the highest latest PRGI,
// optionally restricted to months containing the period substring
// (e.g. "2024-10" or "2024").
func (s *DistrictStore) TopDistricts(n int, period string) ([]DistrictRank, *models.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.prgi) == 0 {
		return nil, nil, services.WrapUpstream("no PRGI data available", nil)
	}
	if n <= 0 {
		n = 5
	}

	points := 0
	ranks := make([]DistrictRank, 0, len(s.prgi))
	for key, series := range s.prgi {
		latest, ok := latestIn(series, period)
		if !ok {
			continue
		}
		points += countIn(series, period)
		ranks = append(ranks, DistrictRank{
			District:     s.names[key],
			PRGI:         round3(latest.PRGI),
			Allocation:   latest.Allocation,
			Distribution: latest.Distribution,
		})
	}
	if len(ranks) == 0 {
		return nil, nil, services.WrapUpstream(fmt.Sprintf("no PRGI data for period %q", period), nil)
	}

	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].PRGI != ranks[j].PRGI {
			return ranks[i].PRGI > ranks[j].PRGI
		}
		return ranks[i].District < ranks[j].District
	})
	if n < len(ranks) {
		ranks = ranks[:n]
	}

	citation := &models.Citation{
		Source:    "PDS Distribution Data",
		Period:    orLatest(period),
		Districts: len(s.prgi),
		Points:    points,
	}
	return ranks, citation, nil
}

// Trend explains a district's PRGI trajectory.
type Trend struct {
	District     string        `json:"district"`
	CurrentPRGI  float64       `json:"current_prgi"`
	Direction    string        `json:"trend"`
	Change       float64       `json:"change"`
	RecentMonths []MonthMetric `json:"recent_months"`
}

// ExplainDistrict returns the current PRGI, direction, and recent history
// for one district, optionally focused on a month.
func (s *DistrictStore) ExplainDistrict(district, month string) (*Trend, *models.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(district))
	series, ok := s.prgi[key]
	if !ok || len(series) == 0 {
		return nil, nil, services.WrapUpstream(fmt.Sprintf("no data found for district %q", district), nil)
	}

	current, ok := latestIn(series, month)
	if !ok {
		return nil, nil, services.WrapUpstream(fmt.Sprintf("no data for %q in %s", month, s.names[key]), nil)
	}

	direction := "stable"
	change := 0.0
	if len(series) > 1 {
		prev := series[len(series)-2].PRGI
		change = current.PRGI - prev
		if change > 0.01 {
			direction = "increasing (worsening)"
		} else if change < -0.01 {
			direction = "decreasing (improving)"
		}
	}

	recent := series
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}

	trend := &Trend{
		District:     s.names[key],
		CurrentPRGI:  round3(current.PRGI),
		Direction:    direction,
		Change:       round3(change),
		RecentMonths: append([]MonthMetric(nil), recent...),
	}
	citation := &models.Citation{
		Source: "PDS Distribution Data",
		Period: current.Month,
	}
	return trend, citation, nil
}

// Spike is one month whose grievance receipts rose beyond the threshold.
type Spike struct {
	Month       string  `json:"month"`
	Receipts    int     `json:"receipts"`
	IncreasePct float64 `json:"increase_pct"`
}

// GrievanceSpikes flags months where receipts grew more than thresholdPct
// over the previous month.
func (s *DistrictStore) GrievanceSpikes(thresholdPct float64) ([]Spike, *models.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.grievances) == 0 {
		return nil, nil, services.WrapUpstream("no grievance data available", nil)
	}
	if thresholdPct <= 0 {
		thresholdPct = 30.0
	}

	var spikes []Spike
	for i := 1; i < len(s.grievances); i++ {
		prev := s.grievances[i-1].Receipts
		cur := s.grievances[i].Receipts
		if prev <= 0 {
			continue
		}
		pct := (float64(cur-prev) / float64(prev)) * 100
		if pct > thresholdPct {
			spikes = append(spikes, Spike{
				Month:       s.grievances[i].Month,
				Receipts:    cur,
				IncreasePct: round1(pct),
			})
		}
	}

	citation := &models.Citation{
		Source: "PGSM Grievance Data",
		Period: fmt.Sprintf("%d months, threshold %.0f%%", len(s.grievances), thresholdPct),
	}
	return spikes, citation, nil
}

// StateSummary aggregates the latest PRGI picture across districts.
type StateSummary struct {
	TotalDistricts    int     `json:"total_districts"`
	AvgPRGI           float64 `json:"avg_prgi"`
	WorstPRGI         float64 `json:"worst_prgi"`
	BestPRGI          float64 `json:"best_prgi"`
	TotalAllocation   float64 `json:"total_allocation"`
	TotalDistribution float64 `json:"total_distribution"`
	HighRisk          int     `json:"high_risk"`   // PRGI > 0.3
	MediumRisk        int     `json:"medium_risk"` // 0.15 < PRGI <= 0.3
	LowRisk           int     `json:"low_risk"`    // PRGI <= 0.15
}

// Summarize computes state-level aggregates, optionally restricted to months
// containing the year substring.
func (s *DistrictStore) Summarize(year string) (*StateSummary, *models.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.prgi) == 0 {
		return nil, nil, services.WrapUpstream("no PRGI data available", nil)
	}

	summary := &StateSummary{BestPRGI: 1.0}
	sum := 0.0
	points := 0
	for _, series := range s.prgi {
		latest, ok := latestIn(series, year)
		if !ok {
			continue
		}
		points += countIn(series, year)
		summary.TotalDistricts++
		sum += latest.PRGI
		if latest.PRGI > summary.WorstPRGI {
			summary.WorstPRGI = latest.PRGI
		}
		if latest.PRGI < summary.BestPRGI {
			summary.BestPRGI = latest.PRGI
		}
		for _, m := range series {
			if year == "" || strings.Contains(m.Month, year) {
				summary.TotalAllocation += m.Allocation
				summary.TotalDistribution += m.Distribution
			}
		}
		switch {
		case latest.PRGI > 0.3:
			summary.HighRisk++
		case latest.PRGI > 0.15:
			summary.MediumRisk++
		default:
			summary.LowRisk++
		}
	}
	if summary.TotalDistricts == 0 {
		return nil, nil, services.WrapUpstream(fmt.Sprintf("no data for year %q", year), nil)
	}
	summary.AvgPRGI = round3(sum / float64(summary.TotalDistricts))
	summary.WorstPRGI = round3(summary.WorstPRGI)
	summary.BestPRGI = round3(summary.BestPRGI)

	citation := &models.Citation{
		Source:    "PDS Distribution Data",
		Period:    orLatest(year),
		Districts: summary.TotalDistricts,
		Points:    points,
	}
	return summary, citation, nil
}

// UpdateResult reports a completed single-record PRGI update.
type UpdateResult struct {
	District string  `json:"district"`
	OldPRGI  float64 `json:"old_prgi"`
	NewPRGI  float64 `json:"new_prgi"`
}

// UpdatePRGI overwrites the latest PRGI value for a district. The value must
// lie in [0,1]. The update is a single-record change applied atomically; on
// any rejection the prior state is intact.
func (s *DistrictStore) UpdatePRGI(district string, value float64) (*UpdateResult, error) {
	if value < 0 || value > 1 {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("prgi value %.3f outside [0,1]", value), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(district))
	series, ok := s.prgi[key]
	if !ok || len(series) == 0 {
		return nil, services.WrapUpstream(fmt.Sprintf("no data found for district %q", district), nil)
	}

	last := &series[len(series)-1]
	old := last.PRGI
	last.PRGI = value

	return &UpdateResult{
		District: s.names[key],
		OldPRGI:  round3(old),
		NewPRGI:  round3(value),
	}, nil
}

// LatestPRGI returns the current PRGI for a district, for tests and readers.
func (s *DistrictStore) LatestPRGI(district string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.prgi[strings.ToLower(district)]
	if !ok || len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1].PRGI, true
}

func latestIn(series []MonthMetric, period string) (MonthMetric, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if period == "" || strings.Contains(series[i].Month, period) {
			return series[i], true
		}
	}
	return MonthMetric{}, false
}

func countIn(series []MonthMetric, period string) int {
	if period == "" {
		return len(series)
	}
	n := 0
	for _, m := range series {
		if strings.Contains(m.Month, period) {
			n++
		}
	}
	return n
}

func orLatest(period string) string {
	if period == "" {
		return "Latest available"
	}
	return period
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
