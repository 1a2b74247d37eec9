// Package metrics records per-phase counters and timings on a private
// registry and dumps them in Prometheus text format when the cycle
// ends. Nothing is served over HTTP; the cycle is a batch process.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the cycle's private metric set.
type Metrics struct {
	registry *prometheus.Registry

	phaseDuration *prometheus.HistogramVec
	phaseRuns     *prometheus.CounterVec
	iterations    prometheus.Counter
	taskFailures  prometheus.Counter
}

// New builds a Metrics set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chaoskit",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock time spent in each cycle phase.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"phase"}),
		phaseRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chaoskit",
			Name:      "phase_runs_total",
			Help:      "Phase executions by outcome.",
		}, []string{"phase", "outcome"}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chaoskit",
			Name:      "improvement_iterations_total",
			Help:      "Completed analyze-improve-replan iterations.",
		}),
		taskFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chaoskit",
			Name:      "failed_tasks_total",
			Help:      "Unit-test tasks that exited nonzero across all runs.",
		}),
	}
	m.registry.MustRegister(m.phaseDuration, m.phaseRuns, m.iterations, m.taskFailures)
	return m
}

// ObservePhase records one phase execution.
func (m *Metrics) ObservePhase(phase string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.phaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
	m.phaseRuns.WithLabelValues(phase, outcome).Inc()
}

// AddIteration counts a completed improvement iteration.
func (m *Metrics) AddIteration() { m.iterations.Inc() }

// AddTaskFailures counts failed unit-test tasks of one run.
func (m *Metrics) AddTaskFailures(n int) { m.taskFailures.Add(float64(n)) }

// WriteFile dumps the registry in Prometheus text format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
