// Package telemetry exposes the sync metrics in the Prometheus format and,
// when enabled, pushes traces, metrics and logs to an OTLP collector and
// profiles to Pyroscope.
package telemetry

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magesync/backend/internal/domain/integration"
)

// Metric names
const (
	MetricTargetsTotal      = "magesync_targets_total"
	MetricTargetAttempts    = "magesync_target_attempts"
	MetricTargetDuration    = "magesync_target_duration_seconds"
	MetricPassesTotal       = "magesync_passes_total"
	MetricPassDuration      = "magesync_pass_duration_seconds"
	MetricPassEnumerated    = "magesync_pass_enumerated"
	MetricRowsWrittenTotal  = "magesync_rows_written_total"
	MetricLastPassTimestamp = "magesync_last_pass_timestamp_seconds"
)

const jobLabel = "job"

// SyncMetrics records batch driver activity in its own registry
type SyncMetrics struct {
	registry *prometheus.Registry

	targetsTotal   *prometheus.CounterVec
	targetAttempts *prometheus.HistogramVec
	targetDuration *prometheus.HistogramVec
	passesTotal    *prometheus.CounterVec
	passDuration   *prometheus.HistogramVec
	passEnumerated *prometheus.GaugeVec
	rowsWritten    *prometheus.CounterVec
	lastPass       *prometheus.GaugeVec
}

// NewSyncMetrics creates the metrics and registers them, plus the Go and
// process collectors, in a fresh registry.
func NewSyncMetrics() *SyncMetrics {
	m := &SyncMetrics{
		registry: prometheus.NewRegistry(),
		targetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTargetsTotal,
			Help: "Targets processed, by job and outcome",
		}, []string{jobLabel, "outcome"}),
		targetAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricTargetAttempts,
			Help:    "Attempts needed per target",
			Buckets: []float64{1, 2, 3, 4, 6, 10},
		}, []string{jobLabel}),
		targetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricTargetDuration,
			Help:    "Time spent on one target including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{jobLabel}),
		passesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPassesTotal,
			Help: "Batch passes, by job and status",
		}, []string{jobLabel, "status"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricPassDuration,
			Help:    "Duration of one batch pass",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{jobLabel}),
		passEnumerated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricPassEnumerated,
			Help: "Targets enumerated by the last pass",
		}, []string{jobLabel}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRowsWrittenTotal,
			Help: "Rows written, by job and kind (created, updated, items)",
		}, []string{jobLabel, "kind"}),
		lastPass: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricLastPassTimestamp,
			Help: "Unix time the last pass of a job finished",
		}, []string{jobLabel}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.targetsTotal,
		m.targetAttempts,
		m.targetDuration,
		m.passesTotal,
		m.passDuration,
		m.passEnumerated,
		m.rowsWritten,
		m.lastPass,
	)
	return m
}

// TargetFinished records one target after its last attempt
func (m *SyncMetrics) TargetFinished(job string, succeeded bool, attempts int, elapsed time.Duration) {
	outcome := "succeeded"
	if !succeeded {
		outcome = "failed"
	}
	m.targetsTotal.WithLabelValues(job, outcome).Inc()
	m.targetAttempts.WithLabelValues(job).Observe(float64(attempts))
	m.targetDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

// PassFinished records the aggregate of one pass
func (m *SyncMetrics) PassFinished(result *integration.SyncResult) {
	job := result.Job
	m.passesTotal.WithLabelValues(job, result.Status.String()).Inc()
	m.passDuration.WithLabelValues(job).Observe(result.Duration().Seconds())
	m.passEnumerated.WithLabelValues(job).Set(float64(result.Enumerated))
	m.rowsWritten.WithLabelValues(job, "created").Add(float64(result.Created))
	m.rowsWritten.WithLabelValues(job, "updated").Add(float64(result.Updated))
	m.rowsWritten.WithLabelValues(job, "items").Add(float64(result.Items))
	if !result.FinishedAt.IsZero() {
		m.lastPass.WithLabelValues(job).Set(float64(result.FinishedAt.Unix()))
	}
}

// RegisterDB exports the connection pool statistics of db
func (m *SyncMetrics) RegisterDB(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Registry returns the registry holding the sync metrics
func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
