package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for admission decisions.
type Metrics struct {
	checks   *prometheus.CounterVec
	commits  *prometheus.CounterVec
	degraded *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with the default
// registry. Create it once per process and share it across managers.
func NewMetrics() *Metrics {
	return &Metrics{
		checks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_admission_checks_total",
				Help: "Total number of admission checks performed",
			},
			[]string{"action", "strategy", "result"},
		),

		commits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_admission_commits_total",
				Help: "Total number of admission commits performed",
			},
			[]string{"action", "strategy", "result"},
		),

		degraded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_admission_degraded_decisions_total",
				Help: "Decisions taken under store outage, by policy outcome",
			},
			[]string{"strategy", "outcome"},
		),
	}
}

// recordCheck counts one admission check.
func (m *Metrics) recordCheck(action string, strategy Strategy, allowed bool) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(action, string(strategy), result(allowed)).Inc()
}

// recordCommit counts one admission commit.
func (m *Metrics) recordCommit(action string, strategy Strategy, ok bool) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(action, string(strategy), result(ok)).Inc()
}

// recordDegraded counts a decision made under store outage.
func (m *Metrics) recordDegraded(strategy Strategy, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "admitted"
	}
	m.degraded.WithLabelValues(string(strategy), outcome).Inc()
}

func result(ok bool) string {
	if ok {
		return "allowed"
	}
	return "denied"
}
