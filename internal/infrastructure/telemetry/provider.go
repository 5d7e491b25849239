package telemetry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupConfig gathers every telemetry setting
type SetupConfig struct {
	OTel Config
	// MetricsInterval is the OTLP metrics push interval
	MetricsInterval time.Duration
	// LogsEnabled also ships log entries at LogLevel and above
	LogsEnabled bool
	LogLevel    zapcore.Level
	DB          DBTracingConfig
	Profiler    ProfilerConfig
}

// Telemetry owns the OTel providers and the profiler of the process
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
	config   SetupConfig
}

// Setup starts the profiler and the trace, metric and log providers. Each
// part is a no-op when its switch is off.
func Setup(ctx context.Context, cfg SetupConfig, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{config: cfg}

	var err error
	if t.Profiler, err = NewProfiler(cfg.Profiler, logger); err != nil {
		return nil, err
	}
	if t.Tracer, err = NewTracerProvider(ctx, cfg.OTel, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	if cfg.Profiler.SpanProfiles && t.Profiler.IsEnabled() {
		t.Tracer.EnableSpanProfiles()
	}
	if t.Meter, err = NewMeterProvider(ctx, cfg.OTel, cfg.MetricsInterval, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	logsCfg := cfg.OTel
	logsCfg.Enabled = cfg.OTel.Enabled && cfg.LogsEnabled
	if t.Logs, err = NewLoggerProvider(ctx, logsCfg, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	return t, nil
}

// Enabled reports whether OTel export is on
func (t *Telemetry) Enabled() bool {
	return t.config.OTel.Enabled
}

// Logger returns base teed to the collector when log export is on
func (t *Telemetry) Logger(base *zap.Logger) *zap.Logger {
	if t.Logs == nil {
		return base
	}
	return t.Logs.Bridge(base, t.config.LogLevel)
}

// Recorder returns the OTel sync metrics, or nil when export is off
func (t *Telemetry) Recorder() (*OTelSyncMetrics, error) {
	if t.Meter == nil || !t.Meter.IsEnabled() {
		return nil, nil
	}
	return NewOTelSyncMetrics(t.Meter.Meter(TracerName))
}

// DBTracing returns the database tracing settings, enabled only with OTel
func (t *Telemetry) DBTracing() DBTracingConfig {
	cfg := t.config.DB
	cfg.Enabled = cfg.Enabled && t.config.OTel.Enabled
	return cfg
}

// Shutdown flushes and stops everything Setup started, in reverse order
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	return errors.Join(errs...)
}
