package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records run outcomes on a private registry so a short-lived
// process can dump them for the node exporter textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	attemptsTotal  *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	pagesTotal     *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	lastSuccessful *prometheus.GaugeVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landdsync_attempts_total",
				Help: "Total number of sync attempts started",
			},
			[]string{"mode"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landdsync_runs_total",
				Help: "Total number of sync runs finished, by final state",
			},
			[]string{"mode", "status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "landdsync_run_duration_seconds",
				Help:    "Duration of sync runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"mode"},
		),
		pagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landdsync_source_pages_total",
				Help: "Total number of source pages fetched",
			},
			[]string{"mode"},
		),
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landdsync_records_total",
				Help: "Records handled, by outcome (published, skipped, excluded)",
			},
			[]string{"mode", "outcome"},
		),
		lastSuccessful: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "landdsync_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run",
			},
			[]string{"mode"},
		),
	}
}

// Registry exposes the collectors, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAttempt counts one attempt.
func (m *Metrics) RecordAttempt(mode string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(mode).Inc()
}

// RecordPages counts fetched source pages.
func (m *Metrics) RecordPages(mode string, n int) {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(mode).Add(float64(n))
}

// RecordRecords adds n records with the given outcome.
func (m *Metrics) RecordRecords(mode, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.recordsTotal.WithLabelValues(mode, outcome).Add(float64(n))
}

// RecordRun records how a run ended.
func (m *Metrics) RecordRun(mode string, state State, durationSeconds, finishedUnix float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(mode, string(state)).Inc()
	m.runDuration.WithLabelValues(mode).Observe(durationSeconds)
	if state == StateCompleted {
		m.lastSuccessful.WithLabelValues(mode).Set(finishedUnix)
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
