package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	RecordAPI RecordAPIConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
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

// RedisConfig holds Redis connection settings. An empty Host selects the
// in-memory lock and nonce stores.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// RecordAPIConfig holds the remote record store connection
type RecordAPIConfig struct {
	BaseURL           string
	BaseID            string
	APIToken          string
	TimeoutSeconds    int
	RequestsPerSecond float64
	MaxRetries        int
}

// Configured reports whether credentials were supplied
func (r RecordAPIConfig) Configured() bool {
	return r.BaseID != "" && r.APIToken != ""
}

// SyncConfig holds reconciliation engine settings
type SyncConfig struct {
	AutoSyncEnabled  bool
	PageSize         int
	PushWorkers      int
	RecordTimeout    time.Duration
	PassLockTTL      time.Duration
	RetryBaseDelay   time.Duration
	RetryMaxAttempts int
	// Tables maps entity type to remote table. Types other than the built-in
	// four get the fallback mapper.
	Tables map[string]string
}

// SchedulerConfig holds async job and retry drainer settings
type SchedulerConfig struct {
	Enabled            bool
	MaxConcurrentJobs  int
	JobTimeout         time.Duration
	RetryAttempts      int
	RetryDelay         time.Duration
	HistoryLimit       int
	RetryPollInterval  time.Duration
	RetryBatchSize     int
	DegradationMaxAge  time.Duration
	MetricsCollectTick time.Duration
	// PullInterval schedules a full pull; zero disables it
	PullInterval       time.Duration
}

// StorageConfig holds the S3 bucket used to resolve media URLs. An empty
// Bucket disables media resolution.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PresignExpiry   time.Duration
	// VerifyObjects checks that a key exists before presigning it
	VerifyObjects   bool
	// PublicBaseURL serves media from a public origin instead of presigned URLs
	PublicBaseURL   string
}

// AuthConfig holds admin token settings
type AuthConfig struct {
	AdminSecret     string
	Issuer          string
	TokenExpiration time.Duration
	NonceTTL        time.Duration
	RequireNonce    bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	ServiceVersion    string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_RECORD_API_API_TOKEN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
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
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		RecordAPI: RecordAPIConfig{
			BaseURL:           v.GetString("record_api.base_url"),
			BaseID:            v.GetString("record_api.base_id"),
			APIToken:          v.GetString("record_api.api_token"),
			TimeoutSeconds:    v.GetInt("record_api.timeout_seconds"),
			RequestsPerSecond: v.GetFloat64("record_api.requests_per_second"),
			MaxRetries:        v.GetInt("record_api.max_retries"),
		},
		Sync: SyncConfig{
			AutoSyncEnabled:  v.GetBool("sync.auto_sync_enabled"),
			PageSize:         v.GetInt("sync.page_size"),
			PushWorkers:      v.GetInt("sync.push_workers"),
			RecordTimeout:    v.GetDuration("sync.record_timeout"),
			PassLockTTL:      v.GetDuration("sync.pass_lock_ttl"),
			RetryBaseDelay:   v.GetDuration("sync.retry_base_delay"),
			RetryMaxAttempts: v.GetInt("sync.retry_max_attempts"),
			Tables:           v.GetStringMapString("sync.tables"),
		},
		Scheduler: SchedulerConfig{
			Enabled:            v.GetBool("scheduler.enabled"),
			MaxConcurrentJobs:  v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:         v.GetDuration("scheduler.job_timeout"),
			RetryAttempts:      v.GetInt("scheduler.retry_attempts"),
			RetryDelay:         v.GetDuration("scheduler.retry_delay"),
			HistoryLimit:       v.GetInt("scheduler.history_limit"),
			RetryPollInterval:  v.GetDuration("scheduler.retry_poll_interval"),
			RetryBatchSize:     v.GetInt("scheduler.retry_batch_size"),
			DegradationMaxAge:  v.GetDuration("scheduler.degradation_max_age"),
			MetricsCollectTick: v.GetDuration("scheduler.metrics_collect_interval"),
			PullInterval:       v.GetDuration("scheduler.pull_interval"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			PresignExpiry:   v.GetDuration("storage.presign_expiry"),
			VerifyObjects:   v.GetBool("storage.verify_objects"),
			PublicBaseURL:   v.GetString("storage.public_base_url"),
		},
		Auth: AuthConfig{
			AdminSecret:     v.GetString("auth.admin_secret"),
			Issuer:          v.GetString("auth.issuer"),
			TokenExpiration: v.GetDuration("auth.token_expiration"),
			NonceTTL:        v.GetDuration("auth.nonce_ttl"),
			RequireNonce:    v.GetBool("auth.require_nonce"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			ServiceVersion:    v.GetString("telemetry.service_version"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
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
		cfg.App.Name = "listing-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "listing_sync"
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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// pull passes run inline on the admin request
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Sync-Nonce"}
	}
	if cfg.RecordAPI.BaseURL == "" {
		cfg.RecordAPI.BaseURL = "https://api.airtable.com/v0"
	}
	if cfg.RecordAPI.TimeoutSeconds == 0 {
		cfg.RecordAPI.TimeoutSeconds = 30
	}
	if cfg.RecordAPI.RequestsPerSecond == 0 {
		cfg.RecordAPI.RequestsPerSecond = 5
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.Sync.PushWorkers == 0 {
		cfg.Sync.PushWorkers = 4
	}
	if cfg.Sync.RecordTimeout == 0 {
		cfg.Sync.RecordTimeout = 30 * time.Second
	}
	if cfg.Sync.PassLockTTL == 0 {
		cfg.Sync.PassLockTTL = 30 * time.Minute
	}
	if cfg.Sync.RetryBaseDelay == 0 {
		cfg.Sync.RetryBaseDelay = time.Minute
	}
	if cfg.Sync.RetryMaxAttempts == 0 {
		cfg.Sync.RetryMaxAttempts = 5
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 2
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
	}
	if cfg.Scheduler.HistoryLimit == 0 {
		cfg.Scheduler.HistoryLimit = 100
	}
	if cfg.Scheduler.RetryPollInterval == 0 {
		cfg.Scheduler.RetryPollInterval = 30 * time.Second
	}
	if cfg.Scheduler.RetryBatchSize == 0 {
		cfg.Scheduler.RetryBatchSize = 20
	}
	if cfg.Scheduler.DegradationMaxAge == 0 {
		cfg.Scheduler.DegradationMaxAge = 30 * 24 * time.Hour
	}
	if cfg.Scheduler.MetricsCollectTick == 0 {
		cfg.Scheduler.MetricsCollectTick = 30 * time.Second
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiry == 0 {
		cfg.Storage.PresignExpiry = 7 * 24 * time.Hour
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "listing-sync"
	}
	if cfg.Auth.TokenExpiration == 0 {
		cfg.Auth.TokenExpiration = time.Hour
	}
	if cfg.Auth.NonceTTL == 0 {
		cfg.Auth.NonceTTL = 10 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "listing-sync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 15 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
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
	if c.RecordAPI.RequestsPerSecond < 0 {
		return fmt.Errorf("record_api.requests_per_second cannot be negative")
	}
	if c.Sync.PageSize < 0 || c.Sync.PageSize > 100 {
		return fmt.Errorf("sync.page_size must be between 1 and 100, got %d", c.Sync.PageSize)
	}
	if c.Sync.PushWorkers < 0 {
		return fmt.Errorf("sync.push_workers cannot be negative")
	}

	if c.App.Env == "production" {
		if len(c.Auth.AdminSecret) < 32 {
			return fmt.Errorf("auth.admin_secret must be at least 32 characters in production")
		}
		if !c.Auth.RequireNonce {
			return fmt.Errorf("auth.require_nonce must be true in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if !c.RecordAPI.Configured() {
			return fmt.Errorf("record_api.base_id and record_api.api_token are required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
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
