// Package bootstrap assembles the sync service from configuration. The HTTP
// server and the CLI share it so both run the same jobs against the same
// session cache and run lock.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appsync "github.com/magesync/backend/internal/application/integration"
	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/cache"
	"github.com/magesync/backend/internal/infrastructure/config"
	"github.com/magesync/backend/internal/infrastructure/logger"
	"github.com/magesync/backend/internal/infrastructure/magento"
	"github.com/magesync/backend/internal/infrastructure/persistence"
	"github.com/magesync/backend/internal/infrastructure/scheduler"
	"github.com/magesync/backend/internal/infrastructure/telemetry"
)

// App is the wired application
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Database  *persistence.Database
	Redis     *redis.Client
	Metrics   *telemetry.SyncMetrics
	Telemetry *telemetry.Telemetry
	Service   *appsync.Service
}

// New starts telemetry, connects the database and, when configured, Redis,
// then builds the remote client, the session provider, the driver and the
// service. App.Logger also ships to the collector when log export is on.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	tel, err := telemetry.Setup(ctx, TelemetryConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	log = tel.Logger(log)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	log.Info("Database connected successfully")
	if err := telemetry.RegisterDBTracing(db.DB, tel.DBTracing(), log); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}

	app := &App{Config: cfg, Logger: log, Database: db, Metrics: telemetry.NewSyncMetrics(), Telemetry: tel}
	if sqlDB, err := db.SQLDB(); err == nil {
		if err := app.Metrics.RegisterDB(sqlDB, cfg.Database.DBName); err != nil {
			log.Warn("Database pool metrics not registered", zap.Error(err))
		}
	}
	recorders := telemetry.Recorders{app.Metrics}
	if otelMetrics, err := tel.Recorder(); err != nil {
		log.Warn("OTel sync metrics not registered", zap.Error(err))
	} else if otelMetrics != nil {
		recorders = append(recorders, otelMetrics)
	}

	var (
		tokens magento.TokenCache = magento.NoopTokenCache{}
		lock   integration.RunLock
	)
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			_ = tel.Shutdown(ctx)
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.Redis = client
		tokens = cache.NewRedisTokenCache(client, cache.Key(cfg.Redis.KeyPrefix, "session"), cfg.Redis.TokenTTL)
		lock = cache.NewRedisRunLock(client, cache.Key(cfg.Redis.KeyPrefix, "lock"), log)
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		lock = cache.NewInMemoryRunLock()
		log.Info("Redis not configured, using in-process session and run lock")
	}

	client := magento.NewClient(magento.Config{
		Endpoint:          cfg.Magento.Endpoint,
		Username:          cfg.Magento.Username,
		APIKey:            cfg.Magento.APIKey,
		Timeout:           cfg.Magento.Timeout,
		RequestsPerSecond: cfg.Magento.RequestsPerSecond,
		Burst:             cfg.Magento.Burst,
		MaxOpsPerSession:  cfg.Magento.MaxOpsPerSession,
		MaxResponseBytes:  cfg.Magento.MaxResponseBytes,
	}, log)
	sessions := magento.NewSessionProvider(client, tokens, cfg.Magento.MaxOpsPerSession, log)

	driver := appsync.NewDriver(sessions, log, appsync.WithRecorder(recorders))
	orders := persistence.NewGormOrderRepository(db.DB)
	jobs := appsync.NewJobs(
		client,
		orders,
		persistence.NewGormCustomerRepository(db.DB),
		persistence.NewGormProductRepository(db.DB),
		log,
	)

	app.Service = appsync.NewService(
		driver,
		jobs,
		orders,
		persistence.NewGormSyncRunRepository(db.DB),
		lock,
		Settings(cfg),
		log,
	)
	return app, nil
}

// Settings maps the configuration onto the service defaults
func Settings(cfg *config.Config) appsync.Settings {
	s := appsync.DefaultSettings()
	s.Options = appsync.Options{
		Concurrency: cfg.Sync.Concurrency,
		Retries:     cfg.Sync.Retries,
		Pause:       cfg.Sync.Pause,
		BackoffBase: cfg.Sync.BackoffBase,
		ErrorSample: cfg.Sync.ErrorSample,
	}
	s.Limit = cfg.Sync.Limit
	s.PassSleep = cfg.Sync.PassSleep
	s.MaxPasses = cfg.Sync.MaxPasses
	s.UpdatedWindow = cfg.Sync.UpdatedWindow
	s.ProductBatchSize = cfg.Sync.ProductBatchSize
	s.StoreView = cfg.Magento.StoreView
	if cfg.Redis.LockTTL > 0 {
		s.LockTTL = cfg.Redis.LockTTL
	}
	return s
}

// TelemetryConfig maps the telemetry and profiling sections onto the
// telemetry setup
func TelemetryConfig(cfg *config.Config) telemetry.SetupConfig {
	db := telemetry.DefaultDBTracingConfig()
	db.Enabled = cfg.Telemetry.DBTraceEnabled
	db.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	db.DBName = cfg.Database.DBName
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		db.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	}
	return telemetry.SetupConfig{
		OTel: telemetry.Config{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			ServiceVersion:    cfg.App.Version,
			Insecure:          cfg.Telemetry.Insecure,
		},
		MetricsInterval: cfg.Telemetry.MetricsInterval,
		LogsEnabled:     cfg.Telemetry.LogsEnabled,
		LogLevel:        logger.ParseLevel(cfg.Log.Level),
		DB:              db,
		Profiler: telemetry.ProfilerConfig{
			Enabled:           cfg.Profiling.Enabled,
			ServerAddress:     cfg.Profiling.ServerAddress,
			ApplicationName:   cfg.Profiling.ApplicationName,
			BasicAuthUser:     cfg.Profiling.BasicAuthUser,
			BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
			ProfileTypes:      cfg.Profiling.ProfileTypes,
			SpanProfiles:      cfg.Profiling.SpanProfiles && cfg.Telemetry.Enabled,
		},
	}
}

// TriggerConfig maps the schedule section onto the periodic trigger
func TriggerConfig(cfg *config.Config) scheduler.SyncTriggerConfig {
	tc := scheduler.DefaultSyncTriggerConfig()
	if cfg.Schedule.CheckInterval > 0 {
		tc.CheckInterval = cfg.Schedule.CheckInterval
	}
	tc.OrderSummaries = cfg.Schedule.OrderSummaries
	tc.Customers = cfg.Schedule.Customers
	tc.OrderDetails = cfg.Schedule.OrderDetails
	tc.ShippingAddresses = cfg.Schedule.ShippingAddresses
	tc.Products = cfg.Schedule.Products
	return tc
}

// Trigger returns the periodic trigger, or nil when no job is scheduled
func (a *App) Trigger() (*scheduler.SyncTrigger, error) {
	if !a.Config.Schedule.Enabled() {
		return nil, nil
	}
	return scheduler.NewSyncTrigger(TriggerConfig(a.Config), a.Service, a.Logger)
}

// Close releases the connections opened by New
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Error closing redis", zap.Error(err))
		}
	}
	if err := a.Database.Close(); err != nil {
		a.Logger.Error("Error closing database", zap.Error(err))
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(context.Background()); err != nil {
			a.Logger.Error("Error shutting down telemetry", zap.Error(err))
		}
	}
}
