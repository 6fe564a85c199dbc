package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments reconciliation runs.
type Metrics struct {
	Resources       *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	Duration        prometheus.Histogram
}

// NewMetrics registers reconciler metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resources: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skiff_resources_total",
			Help: "Resource operations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skiff_reconciliations_total",
			Help: "Reconciliation runs by operation and outcome.",
		}, []string{"operation", "outcome"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "skiff_reconciliation_duration_seconds",
			Help:    "Wall time of reconciliation runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

func (m *Metrics) resource(provider string, action Action) {
	if m == nil {
		return
	}
	m.Resources.WithLabelValues(provider, string(action)).Inc()
}

func (m *Metrics) run(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Reconciliations.WithLabelValues(operation, outcome).Inc()
}
