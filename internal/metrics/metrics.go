// Package metrics exposes Prometheus collectors for pipeline runs, scoring
// and curation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "job_curator"

	runsTotal          = "runs_total"
	runDurationSeconds = "run_duration_seconds"
	transitionsTotal   = "state_transitions_total"
	scoresTotal        = "scores_total"
	scoreAttempts      = "score_attempts"
	curationsTotal     = "curations_total"

	outcomeLabel = "outcome"
	fromLabel    = "from"
	toLabel      = "to"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	scores        *prometheus.CounterVec
	scoreAttempts prometheus.Histogram
	curations     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      runsTotal,
			Help:      "number of automation runs by outcome",
		}, []string{outcomeLabel}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      runDurationSeconds,
			Help:      "duration of automation runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{outcomeLabel}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      transitionsTotal,
			Help:      "orchestration graph transitions",
		}, []string{fromLabel, toLabel}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      scoresTotal,
			Help:      "jobs handled by the scoring engine by outcome",
		}, []string{outcomeLabel}),
		scoreAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      scoreAttempts,
			Help:      "model calls needed to score one job",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		curations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      curationsTotal,
			Help:      "jobs handled by the curation engine by outcome",
		}, []string{outcomeLabel}),
	}

	m.registry.MustRegister(
		m.runs,
		m.runDuration,
		m.transitions,
		m.scores,
		m.scoreAttempts,
		m.curations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTransition(from, to string) {
	m.transitions.With(prometheus.Labels{fromLabel: from, toLabel: to}).Inc()
}

func (m *Metrics) ObserveScore(outcome string, attempts int) {
	m.scores.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.scoreAttempts.Observe(float64(attempts))
	}
}

func (m *Metrics) ObserveCuration(outcome string) {
	m.curations.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and for wiring extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
