package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/neuronote/pkg/audit"
	"github.com/platinummonkey/neuronote/pkg/catalog"
	"github.com/platinummonkey/neuronote/pkg/httputil"
	"github.com/platinummonkey/neuronote/pkg/observability"
	"github.com/platinummonkey/neuronote/pkg/query"
	"github.com/platinummonkey/neuronote/pkg/usage"
)

// Manifest source types
const (
	SourceFile = "file"
	SourceS3   = "s3"
)

// Usage backends
const (
	UsageMemory   = "memory"
	UsageRedis    = "redis"
	UsagePostgres = "postgres"
	UsageSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Manifest source and aggregation cache
	Manifest ManifestConfig

	// Usage counter persistence
	Usage UsageConfig

	// Trace store and retention
	Traces TracesConfig

	// Query backend
	Query QueryConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	CORSOrigins  []string
	MaxBodyBytes int64
}

// ManifestConfig selects where plugin records come from
type ManifestConfig struct {
	Source string
	Path   string
	Watch  bool
	S3     catalog.S3Config

	CacheSize     int
	CacheTTL      time.Duration
	RecencyWindow time.Duration
}

// UsageConfig selects the usage counter backend
type UsageConfig struct {
	Backend string
	Redis   usage.RedisConfig
	SQL     usage.SQLConfig
}

// TracesConfig configures the trace store
type TracesConfig struct {
	Dir             string
	Retention       audit.RetentionPolicy
	CleanupSchedule string
}

// QueryConfig configures the orchestrator client. An empty URL disables
// POST /query. A zero RateLimit leaves the route unlimited.
type QueryConfig struct {
	Backend   query.BackendConfig
	RateLimit httputil.RateLimitConfig
}

// Enabled reports whether a query backend is configured
func (q QueryConfig) Enabled() bool {
	return q.Backend.URL != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  observability.LogLevel
	LogFormat string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// OTel returns the tracing settings in the form InitOTel expects
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Manifest:      loadManifestConfig(),
		Usage:         loadUsageConfig(),
		Traces:        loadTracesConfig(),
		Query:         loadQueryConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("NEURONOTE_HOST", "0.0.0.0"),
		Port:            getEnv("NEURONOTE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("NEURONOTE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("NEURONOTE_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("NEURONOTE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("NEURONOTE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("NEURONOTE_HEALTH_PORT", "9090"),
		CORSOrigins:     getEnvList("NEURONOTE_CORS_ORIGINS", []string{"*"}),
		MaxBodyBytes:    getEnvInt64("NEURONOTE_MAX_BODY_BYTES", 1<<20),
	}
}

// loadManifestConfig loads manifest source configuration from environment
func loadManifestConfig() ManifestConfig {
	return ManifestConfig{
		Source: strings.ToLower(getEnv("NEURONOTE_MANIFEST_SOURCE", SourceFile)),
		Path:   getEnv("NEURONOTE_MANIFEST_PATH", "plugins.json"),
		Watch:  getEnvBool("NEURONOTE_MANIFEST_WATCH", true),
		S3: catalog.S3Config{
			Bucket:          getEnv("NEURONOTE_S3_BUCKET", ""),
			Key:             getEnv("NEURONOTE_S3_KEY", "plugins.json"),
			Region:          getEnv("NEURONOTE_S3_REGION", "us-east-1"),
			Endpoint:        getEnv("NEURONOTE_S3_ENDPOINT", ""),
			AccessKey:       getEnv("NEURONOTE_S3_ACCESS_KEY", ""),
			SecretKey:       getEnv("NEURONOTE_S3_SECRET_KEY", ""),
			UsePathStyle:    getEnvBool("NEURONOTE_S3_USE_PATH_STYLE", false),
			RefreshInterval: getEnvDuration("NEURONOTE_S3_REFRESH_INTERVAL", 30*time.Second),
		},
		CacheSize:     getEnvInt("NEURONOTE_CACHE_SIZE", catalog.DefaultCacheSize),
		CacheTTL:      getEnvDuration("NEURONOTE_CACHE_TTL", catalog.DefaultCacheTTL),
		RecencyWindow: getEnvDuration("NEURONOTE_RECENCY_WINDOW", 0),
	}
}

// loadUsageConfig loads usage backend configuration from environment
func loadUsageConfig() UsageConfig {
	cfg := UsageConfig{
		Backend: strings.ToLower(getEnv("NEURONOTE_USAGE_BACKEND", UsageMemory)),
		Redis: usage.RedisConfig{
			URL:        getEnv("NEURONOTE_REDIS_URL", "redis://localhost:6379/0"),
			Password:   getEnv("NEURONOTE_REDIS_PASSWORD", ""),
			MaxRetries: getEnvInt("NEURONOTE_REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("NEURONOTE_REDIS_POOL_SIZE", 10),
			KeyPrefix:  getEnv("NEURONOTE_REDIS_KEY_PREFIX", ""),
		},
		SQL: usage.SQLConfig{
			DSN:         getEnv("NEURONOTE_SQL_DSN", ""),
			MaxConns:    getEnvInt("NEURONOTE_SQL_MAX_CONNS", 10),
			MaxLifetime: getEnvDuration("NEURONOTE_SQL_MAX_LIFETIME", 30*time.Minute),
			Timeout:     getEnvDuration("NEURONOTE_SQL_TIMEOUT", 5*time.Second),
		},
	}

	if redisDB := getEnvInt("NEURONOTE_REDIS_DB", -1); redisDB >= 0 {
		cfg.Redis.DB = redisDB
	}

	switch cfg.Backend {
	case UsagePostgres:
		cfg.SQL.Driver = usage.DialectPostgres
	case UsageSQLite:
		cfg.SQL.Driver = usage.DialectSQLite
		if cfg.SQL.DSN == "" {
			cfg.SQL.DSN = "file:neuronote-usage.db?_busy_timeout=5000"
		}
		// SQLite serializes writers
		cfg.SQL.MaxConns = 1
	}

	return cfg
}

// loadTracesConfig loads trace store configuration from environment
func loadTracesConfig() TracesConfig {
	retention := audit.DefaultRetentionPolicy()
	retention.RetentionDays = getEnvInt("NEURONOTE_TRACE_RETENTION_DAYS", retention.RetentionDays)
	retention.ArchiveEnabled = getEnvBool("NEURONOTE_TRACE_ARCHIVE_ENABLED", false)
	retention.ArchivePath = getEnv("NEURONOTE_TRACE_ARCHIVE_PATH", "")

	return TracesConfig{
		Dir:             getEnv("NEURONOTE_TRACE_DIR", "logs/orchestration_traces"),
		Retention:       retention,
		CleanupSchedule: getEnv("NEURONOTE_TRACE_CLEANUP_SCHEDULE", "@daily"),
	}
}

// loadQueryConfig loads the orchestrator client configuration from environment
func loadQueryConfig() QueryConfig {
	defaults := query.DefaultBackendConfig()
	return QueryConfig{
		Backend: query.BackendConfig{
			URL:          getEnv("NEURONOTE_QUERY_BACKEND_URL", ""),
			Timeout:      getEnvDuration("NEURONOTE_QUERY_TIMEOUT", defaults.Timeout),
			RetryMax:     getEnvInt("NEURONOTE_QUERY_RETRY_MAX", defaults.RetryMax),
			RetryWaitMin: getEnvDuration("NEURONOTE_QUERY_RETRY_WAIT_MIN", defaults.RetryWaitMin),
			RetryWaitMax: getEnvDuration("NEURONOTE_QUERY_RETRY_WAIT_MAX", defaults.RetryWaitMax),
		},
		RateLimit: httputil.RateLimitConfig{
			RequestsPerWindow: getEnvInt("NEURONOTE_QUERY_RATE_LIMIT", 0),
			WindowDuration:    getEnvDuration("NEURONOTE_QUERY_RATE_WINDOW", time.Minute),
			BurstSize:         getEnvInt("NEURONOTE_QUERY_RATE_BURST", 0),
		},
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("NEURONOTE_LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("NEURONOTE_LOG_FORMAT", "json")),
		MetricsEnabled:     getEnvBool("NEURONOTE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("NEURONOTE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("NEURONOTE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("NEURONOTE_OTEL_SERVICE_NAME", "neuronote"),
		OTelServiceVersion: getEnv("NEURONOTE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("NEURONOTE_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("NEURONOTE_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate manifest source
	switch c.Manifest.Source {
	case SourceFile:
		if c.Manifest.Path == "" {
			return fmt.Errorf("manifest path is required for file source")
		}
	case SourceS3:
		if c.Manifest.S3.Bucket == "" || c.Manifest.S3.Key == "" {
			return fmt.Errorf("S3 bucket and key are required for s3 source")
		}
	default:
		return fmt.Errorf("invalid manifest source: %s (must be file or s3)", c.Manifest.Source)
	}

	// Validate usage backend
	switch c.Usage.Backend {
	case UsageMemory:
	case UsageRedis:
		if c.Usage.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for redis usage backend")
		}
	case UsagePostgres, UsageSQLite:
		if c.Usage.SQL.DSN == "" {
			return fmt.Errorf("SQL DSN is required for %s usage backend", c.Usage.Backend)
		}
	default:
		return fmt.Errorf("invalid usage backend: %s (must be memory, redis, postgres, or sqlite)", c.Usage.Backend)
	}

	// Validate trace store
	if c.Traces.Dir == "" {
		return fmt.Errorf("trace directory is required")
	}
	if c.Traces.Retention.ArchiveEnabled && c.Traces.Retention.ArchivePath == "" {
		return fmt.Errorf("archive path is required when trace archiving is enabled")
	}
	if c.Traces.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.Traces.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid trace cleanup schedule %q: %w", c.Traces.CleanupSchedule, err)
		}
	}

	// Validate query rate limit
	if rl := c.Query.RateLimit; rl.RequestsPerWindow < 0 || rl.BurstSize < 0 {
		return fmt.Errorf("query rate limit and burst must not be negative")
	} else if rl.RequestsPerWindow > 0 && rl.WindowDuration <= 0 {
		return fmt.Errorf("query rate window must be positive when a rate limit is set")
	}

	// Validate logging
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
