package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec // by role and badge
	DecisionsTotal  *prometheus.CounterVec // by decision
	TokensIssued    prometheus.Counter
	TokensRejected  *prometheus.CounterVec   // by reason
	FindingsTotal   *prometheus.CounterVec   // by category and direction
	QueryDuration   *prometheus.HistogramVec // by badge
	AuditBufferFill prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil registerer gets a
// private registry so tests can construct metrics without global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		QueriesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "civigate_queries_total",
			Help: "Total number of agent queries processed.",
		}, []string{"role", "badge"}),

		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "civigate_policy_decisions_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"decision"}),

		TokensIssued: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "civigate_tokens_issued_total",
			Help: "Verification tokens minted.",
		}),

		TokensRejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "civigate_tokens_rejected_total",
			Help: "Verification tokens rejected at consumption.",
		}, []string{"reason"}),

		FindingsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "civigate_scan_findings_total",
			Help: "Content scanner findings by category and scan direction.",
		}, []string{"category", "direction"}),

		QueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civigate_query_duration_seconds",
			Help:    "End-to-end query latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"badge"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "civigate_audit_buffer_utilization",
			Help: "Current number of events in the audit buffer.",
		}),
	}
}
