package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Magento   MagentoConfig
	Sync      SyncConfig
	Schedule  ScheduleConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// Version is stamped by the binary, not read from config
	Version string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	// InternalToken guards the trigger routes; empty disables the check
	InternalToken  string
	TrustedProxies []string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	SlowThreshold   time.Duration
}

// RedisConfig holds Redis connection settings. An empty host disables Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// KeyPrefix namespaces the token cache and run lock keys
	KeyPrefix string
	TokenTTL  time.Duration
	LockTTL   time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// MagentoConfig holds the remote SOAP endpoint settings
type MagentoConfig struct {
	Endpoint          string
	Username          string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// MaxOpsPerSession rotates the session after that many calls, 0 = unlimited
	MaxOpsPerSession int
	MaxResponseBytes int64
	StoreView        string
}

// SyncConfig holds the batch driver defaults
type SyncConfig struct {
	Limit            int
	Concurrency      int
	Retries          int
	Pause            time.Duration
	BackoffBase      time.Duration
	PassSleep        time.Duration
	MaxPasses        int
	UpdatedWindow    time.Duration
	ProductBatchSize int
	ErrorSample      int
}

// ScheduleConfig holds the in-process periodic triggers. A zero interval
// leaves that job to the HTTP and CLI triggers.
type ScheduleConfig struct {
	CheckInterval     time.Duration
	OrderSummaries    time.Duration
	Customers         time.Duration
	OrderDetails      time.Duration
	ShippingAddresses time.Duration
	Products          time.Duration
}

// Enabled reports whether any job has an interval
func (s ScheduleConfig) Enabled() bool {
	return s.OrderSummaries > 0 || s.Customers > 0 || s.OrderDetails > 0 ||
		s.ShippingAddresses > 0 || s.Products > 0
}

// TelemetryConfig holds the OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	// LogsEnabled ships log entries to the collector as well
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// ProfilingConfig holds the Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string
	// SpanProfiles links CPU profiles to trace spans; needs telemetry enabled
	SpanProfiles bool
}

// legacyEnv maps config keys to the environment names of earlier deployments
var legacyEnv = map[string]string{
	"magento.endpoint":    "MAGENTO_API_URL",
	"magento.username":    "MAGENTO_API_USER",
	"magento.api_key":     "MAGENTO_API_KEY",
	"http.internal_token": "INTERNAL_TOKEN",
	"app.port":            "PORT",
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with MAGESYNC_ prefix (e.g., MAGESYNC_DATABASE_PASSWORD)
// 2. Legacy environment names (MAGENTO_API_URL, INTERNAL_TOKEN, PORT...)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/magesync")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MAGESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// BindEnv takes the first variable that is set
		if err := v.BindEnv(key, "MAGESYNC_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			InternalToken:   v.GetString("http.internal_token"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
			TokenTTL:  v.GetDuration("redis.token_ttl"),
			LockTTL:   v.GetDuration("redis.lock_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Magento: MagentoConfig{
			Endpoint:          v.GetString("magento.endpoint"),
			Username:          v.GetString("magento.username"),
			APIKey:            v.GetString("magento.api_key"),
			Timeout:           v.GetDuration("magento.timeout"),
			RequestsPerSecond: v.GetFloat64("magento.requests_per_second"),
			Burst:             v.GetInt("magento.burst"),
			MaxOpsPerSession:  v.GetInt("magento.max_ops_per_session"),
			MaxResponseBytes:  v.GetInt64("magento.max_response_bytes"),
			StoreView:         v.GetString("magento.store_view"),
		},
		Sync: SyncConfig{
			Limit:            v.GetInt("sync.limit"),
			Concurrency:      v.GetInt("sync.concurrency"),
			Retries:          v.GetInt("sync.retries"),
			Pause:            v.GetDuration("sync.pause"),
			BackoffBase:      v.GetDuration("sync.backoff_base"),
			PassSleep:        v.GetDuration("sync.pass_sleep"),
			MaxPasses:        v.GetInt("sync.max_passes"),
			UpdatedWindow:    v.GetDuration("sync.updated_window"),
			ProductBatchSize: v.GetInt("sync.product_batch_size"),
			ErrorSample:      v.GetInt("sync.error_sample"),
		},
		Schedule: ScheduleConfig{
			CheckInterval:     v.GetDuration("schedule.check_interval"),
			OrderSummaries:    v.GetDuration("schedule.order_summaries"),
			Customers:         v.GetDuration("schedule.customers"),
			OrderDetails:      v.GetDuration("schedule.order_details"),
			ShippingAddresses: v.GetDuration("schedule.shipping_addresses"),
			Products:          v.GetDuration("schedule.products"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			ApplicationName:   v.GetString("profiling.application_name"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			ProfileTypes:      v.GetStringSlice("profiling.profile_types"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
	}
	// A sampling ratio of 0 is valid; only an unset key takes the default
	if !v.IsSet("telemetry.sampling_ratio") {
		cfg.Telemetry.SamplingRatio = -1
	}
	// Retries may legitimately be 0; only an unset key takes the default
	if !v.IsSet("sync.retries") {
		cfg.Sync.Retries = -1
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "magesync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Batch triggers answer when the pass is over, so the write timeout is long
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "magesync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}

	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "magesync"
	}
	if cfg.Redis.TokenTTL == 0 {
		cfg.Redis.TokenTTL = 50 * time.Minute
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 2 * time.Hour
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Magento.Timeout == 0 {
		cfg.Magento.Timeout = 60 * time.Second
	}
	if cfg.Magento.MaxResponseBytes == 0 {
		cfg.Magento.MaxResponseBytes = 32 << 20
	}

	if cfg.Sync.Limit == 0 {
		cfg.Sync.Limit = 200
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 5
	}
	if cfg.Sync.Retries < 0 {
		cfg.Sync.Retries = 2
	}
	if cfg.Sync.Pause == 0 {
		cfg.Sync.Pause = 300 * time.Millisecond
	}
	if cfg.Sync.BackoffBase == 0 {
		cfg.Sync.BackoffBase = 300 * time.Millisecond
	}
	if cfg.Sync.PassSleep == 0 {
		cfg.Sync.PassSleep = 1500 * time.Millisecond
	}
	if cfg.Sync.MaxPasses == 0 {
		cfg.Sync.MaxPasses = 10000
	}
	if cfg.Sync.UpdatedWindow == 0 {
		cfg.Sync.UpdatedWindow = 24 * time.Hour
	}
	if cfg.Sync.ProductBatchSize == 0 {
		cfg.Sync.ProductBatchSize = 25
	}
	if cfg.Sync.ErrorSample == 0 {
		cfg.Sync.ErrorSample = 20
	}

	if cfg.Schedule.CheckInterval == 0 {
		cfg.Schedule.CheckInterval = time.Minute
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio < 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}

	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.App.Name
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1, got %d", c.Sync.Concurrency)
	}
	if c.Sync.Limit < 0 {
		return fmt.Errorf("sync.limit cannot be negative")
	}
	if c.Sync.MaxPasses < 1 {
		return fmt.Errorf("sync.max_passes must be at least 1")
	}
	if c.Magento.MaxOpsPerSession < 0 {
		return fmt.Errorf("magento.max_ops_per_session cannot be negative")
	}
	if c.Magento.RequestsPerSecond < 0 {
		return fmt.Errorf("magento.requests_per_second cannot be negative")
	}
	if c.Schedule.Enabled() && c.Schedule.CheckInterval < time.Second {
		return fmt.Errorf("schedule.check_interval must be at least 1s")
	}
	if c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	if c.App.Env == "production" {
		if c.HTTP.InternalToken == "" {
			return fmt.Errorf("http.internal_token is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be disabled in production")
		}
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis server is configured
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}
