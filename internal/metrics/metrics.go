// Package metrics wires the worker's Prometheus instrumentation: a gauge
// for in-flight jobs, per-phase counters and a duration histogram, and a
// retry counter shared across every retrying caller in the worker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects the worker's Prometheus metrics.
type Collector struct {
	runningTasks prometheus.Gauge

	phaseDispatched *prometheus.CounterVec
	phaseSucceeded  *prometheus.CounterVec
	phaseFailed     *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec

	retries prometheus.Counter
}

// NewCollector creates and registers a Collector against the default
// Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		runningTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workspace_worker_running_tasks",
			Help: "Current number of in-flight workspace jobs",
		}),
		phaseDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workspace_worker_phase_dispatched_total",
			Help: "Total number of phase dispatches, by phase",
		}, []string{"phase"}),
		phaseSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workspace_worker_phase_succeeded_total",
			Help: "Total number of phase successes, by phase",
		}, []string{"phase"}),
		phaseFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workspace_worker_phase_failed_total",
			Help: "Total number of phase failures, by phase",
		}, []string{"phase"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workspace_worker_phase_duration_seconds",
			Help:    "Phase execution duration in seconds, by phase",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workspace_worker_retries_total",
			Help: "Total number of retry attempts across all retrying callers",
		}),
	}

	prometheus.MustRegister(
		c.runningTasks,
		c.phaseDispatched, c.phaseSucceeded, c.phaseFailed, c.phaseDuration,
		c.retries,
	)
	return c
}

func (c *Collector) SetRunningTasks(n int) { c.runningTasks.Set(float64(n)) }

func (c *Collector) RecordDispatch(phase string) { c.phaseDispatched.WithLabelValues(phase).Inc() }

func (c *Collector) RecordSuccess(phase string, seconds float64) {
	c.phaseSucceeded.WithLabelValues(phase).Inc()
	c.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

func (c *Collector) RecordFailure(phase string, seconds float64) {
	c.phaseFailed.WithLabelValues(phase).Inc()
	c.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

func (c *Collector) RecordRetry() { c.retries.Inc() }

// Handler exposes the registered metrics in the standard Prometheus text
// format, for mounting at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
