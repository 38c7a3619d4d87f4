// Package metrics exposes voxsh counters and latencies to Prometheus.
// Collectors live in a private registry per Collector so tests and multiple
// sessions never share global state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"voxsh/internal/logging"
	"voxsh/internal/resolve"
	"voxsh/internal/speech"
	"voxsh/internal/tactile"
)

const namespace = "voxsh"

// Collector records session metrics. It implements resolve.Recorder and
// perception.CallRecorder.
type Collector struct {
	registry *prometheus.Registry

	attempts         *prometheus.CounterVec
	attemptDuration  prometheus.Histogram
	resolutions      *prometheus.CounterVec
	attemptsPerTask  prometheus.Histogram
	oracleCalls      *prometheus.CounterVec
	oracleDuration   *prometheus.HistogramVec
	listenSessions   *prometheus.CounterVec
	executionEvents  *prometheus.CounterVec
	truncatedOutputs prometheus.Counter
}

// New creates a Collector with its own registry. Go runtime and process
// collectors are included.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Command attempts by outcome.",
		}, []string{"outcome", "edited"}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of command executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolved tasks by final outcome.",
		}, []string{"outcome", "budget_exhausted"}),
		attemptsPerTask: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempts_per_task",
			Help:      "Number of attempts a task needed.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Language model calls by operation and result.",
		}, []string{"op", "result"}),
		oracleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_duration_seconds",
			Help:      "Language model call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		listenSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listen_sessions_total",
			Help:      "Listening sessions by final state.",
		}, []string{"state"}),
		executionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_events_total",
			Help:      "Shell executor audit events by type.",
		}, []string{"type"}),
		truncatedOutputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncated_outputs_total",
			Help:      "Executions whose output exceeded the capture limit.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.attempts,
		c.attemptDuration,
		c.resolutions,
		c.attemptsPerTask,
		c.oracleCalls,
		c.oracleDuration,
		c.listenSessions,
		c.executionEvents,
		c.truncatedOutputs,
	)
	return c
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveAttempt implements resolve.Recorder.
func (c *Collector) ObserveAttempt(a resolve.Attempt) {
	c.attempts.WithLabelValues(a.Outcome.String(), boolLabel(a.Edited)).Inc()
	c.attemptDuration.Observe(a.Duration.Seconds())
}

// ObserveResolution implements resolve.Recorder.
func (c *Collector) ObserveResolution(r *resolve.Result) {
	c.resolutions.WithLabelValues(r.Outcome.String(), boolLabel(r.BudgetExhausted)).Inc()
	c.attemptsPerTask.Observe(float64(len(r.Attempts)))
}

// ObserveOracleCall implements perception.CallRecorder.
func (c *Collector) ObserveOracleCall(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.oracleCalls.WithLabelValues(op, result).Inc()
	c.oracleDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveListen records the final state of a listening session.
func (c *Collector) ObserveListen(state speech.State) {
	c.listenSessions.WithLabelValues(state.String()).Inc()
}

// ObserveAudit records a shell executor audit event. Suitable as a
// tactile.DirectExecutor audit callback.
func (c *Collector) ObserveAudit(ev tactile.AuditEvent) {
	c.executionEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Result != nil && ev.Result.Truncated && ev.Type == tactile.AuditEventComplete {
		c.truncatedOutputs.Inc()
	}
	if ev.Type == tactile.AuditEventError || ev.Type == tactile.AuditEventKilled {
		logging.Metrics("execution %s: %s", ev.Type, ev.Command.CommandString())
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
