package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes reported by the side-effect dispatcher.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePanic   = "panic"
	OutcomeTimeout = "timeout"
)

// DispatchMetrics records side-effect task results.
type DispatchMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	m := &DispatchMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_tasks_total",
			Help:      "Side-effect tasks by name and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "side_effect_task_duration_seconds",
			Help:      "Side-effect task latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "side_effect_tasks_inflight",
			Help:      "Side-effect tasks currently running.",
		}),
	}
	reg.MustRegister(m.outcomes, m.duration, m.inflight)
	return m
}

func (m *DispatchMetrics) Observe(task, outcome string, d time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	task = normalizeLabel(task)
	m.outcomes.WithLabelValues(task, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *DispatchMetrics) Started() {
	if m == nil || m.inflight == nil {
		return
	}
	m.inflight.Inc()
}

func (m *DispatchMetrics) Finished() {
	if m == nil || m.inflight == nil {
		return
	}
	m.inflight.Dec()
}
