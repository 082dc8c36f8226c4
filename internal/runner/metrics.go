package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the runner's Prometheus collectors.
type Metrics struct {
	Runs     *prometheus.CounterVec
	Writes   *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uow",
			Name:      "runs_total",
			Help:      "Unit-of-work runs by result.",
		}, []string{"result"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uow",
			Name:      "writes_total",
			Help:      "Physical writes by command kind.",
		}, []string{"kind"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uow",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run, commit included.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Writes, m.Duration)
	}
	return m
}
