package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/magesync/backend/internal/domain/integration"
)

// defaultExportInterval is how often metrics are pushed to the collector
const defaultExportInterval = 60 * time.Second

// MeterProvider wraps the SDK meter provider with lifecycle management
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   Config
}

// NewMeterProvider creates the meter provider and installs it globally.
// When telemetry is disabled the global no-op provider stays in place.
func NewMeterProvider(ctx context.Context, cfg Config, interval time.Duration, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger, config: cfg}
	if !cfg.Enabled {
		return mp, nil
	}
	if interval <= 0 {
		interval = defaultExportInterval
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Meter returns a named meter
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether metrics are pushed
func (mp *MeterProvider) IsEnabled() bool {
	return mp.config.Enabled && mp.provider != nil
}

// Shutdown flushes pending metrics and stops the exporter
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := mp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.logger.Info("OpenTelemetry MeterProvider shutdown complete")
	return nil
}

var (
	attrJob     = attribute.Key(jobLabel)
	attrOutcome = attribute.Key("outcome")
	attrStatus  = attribute.Key("status")
	attrKind    = attribute.Key("kind")
)

// OTelSyncMetrics records the same driver events as SyncMetrics on OTel
// instruments, for pushing to a collector
type OTelSyncMetrics struct {
	targets        metric.Int64Counter
	targetAttempts metric.Int64Histogram
	targetDuration metric.Float64Histogram
	passes         metric.Int64Counter
	passDuration   metric.Float64Histogram
	rowsWritten    metric.Int64Counter
}

// NewOTelSyncMetrics creates the instruments on meter
func NewOTelSyncMetrics(meter metric.Meter) (*OTelSyncMetrics, error) {
	var (
		m   OTelSyncMetrics
		err error
	)
	if m.targets, err = meter.Int64Counter(MetricTargetsTotal,
		metric.WithDescription("Targets processed, by job and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricTargetsTotal, err)
	}
	if m.targetAttempts, err = meter.Int64Histogram(MetricTargetAttempts,
		metric.WithDescription("Attempts needed per target"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 6, 10)); err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", MetricTargetAttempts, err)
	}
	if m.targetDuration, err = meter.Float64Histogram(MetricTargetDuration,
		metric.WithDescription("Time spent on one target including retries"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", MetricTargetDuration, err)
	}
	if m.passes, err = meter.Int64Counter(MetricPassesTotal,
		metric.WithDescription("Batch passes, by job and status")); err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricPassesTotal, err)
	}
	if m.passDuration, err = meter.Float64Histogram(MetricPassDuration,
		metric.WithDescription("Duration of one batch pass"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", MetricPassDuration, err)
	}
	if m.rowsWritten, err = meter.Int64Counter(MetricRowsWrittenTotal,
		metric.WithDescription("Rows written, by job and kind")); err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", MetricRowsWrittenTotal, err)
	}
	return &m, nil
}

// TargetFinished records one target after its last attempt
func (m *OTelSyncMetrics) TargetFinished(job string, succeeded bool, attempts int, elapsed time.Duration) {
	ctx := context.Background()
	outcome := "succeeded"
	if !succeeded {
		outcome = "failed"
	}
	jobAttr := metric.WithAttributes(attrJob.String(job))
	m.targets.Add(ctx, 1, metric.WithAttributes(attrJob.String(job), attrOutcome.String(outcome)))
	m.targetAttempts.Record(ctx, int64(attempts), jobAttr)
	m.targetDuration.Record(ctx, elapsed.Seconds(), jobAttr)
}

// PassFinished records the aggregate of one pass
func (m *OTelSyncMetrics) PassFinished(result *integration.SyncResult) {
	ctx := context.Background()
	job := attrJob.String(result.Job)
	m.passes.Add(ctx, 1, metric.WithAttributes(job, attrStatus.String(result.Status.String())))
	m.passDuration.Record(ctx, result.Duration().Seconds(), metric.WithAttributes(job))
	m.rowsWritten.Add(ctx, int64(result.Created), metric.WithAttributes(job, attrKind.String("created")))
	m.rowsWritten.Add(ctx, int64(result.Updated), metric.WithAttributes(job, attrKind.String("updated")))
	m.rowsWritten.Add(ctx, int64(result.Items), metric.WithAttributes(job, attrKind.String("items")))
}

// SyncRecorder is the driver's view of a metrics sink
type SyncRecorder interface {
	TargetFinished(job string, succeeded bool, attempts int, elapsed time.Duration)
	PassFinished(result *integration.SyncResult)
}

// Recorders fans driver events out to several sinks
type Recorders []SyncRecorder

// TargetFinished forwards to every sink
func (rs Recorders) TargetFinished(job string, succeeded bool, attempts int, elapsed time.Duration) {
	for _, r := range rs {
		r.TargetFinished(job, succeeded, attempts, elapsed)
	}
}

// PassFinished forwards to every sink
func (rs Recorders) PassFinished(result *integration.SyncResult) {
	for _, r := range rs {
		r.PassFinished(result)
	}
}
