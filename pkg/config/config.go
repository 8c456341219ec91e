package config

import "time"

// Config is the root configuration for the relay.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Provider configures the upstream LLM endpoint.
	Provider ProviderConfig `yaml:"provider"`

	// Store configures the prompt library database.
	Store StoreConfig `yaml:"store"`

	// Usage configures usage accounting.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on (e.g. ":8085").
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response.
	// Zero disables it; relay streams are long-lived and bounded by the
	// client connection instead.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CORS configures cross-origin access.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins; ["*"] allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int `yaml:"max_age"`
}

// ProviderConfig contains upstream provider settings.
type ProviderConfig struct {
	// Name identifies the provider in logs and metrics.
	Name string `yaml:"name"`

	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is the upstream credential. Required; prefer setting it
	// via HERMES_PROVIDER_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`

	// DefaultModel is used when a request names no model and by
	// diagnostic commands.
	DefaultModel string `yaml:"default_model"`

	// Timeout is the per-request upstream timeout. For streaming calls
	// it bounds the connection and header phase only, and body reads
	// are bounded by the caller's context; non-streaming calls are
	// bounded end to end.
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the upstream connection pool size.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long idle upstream connections are kept.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// StoreConfig contains prompt store settings.
type StoreConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is the wait when the database is locked.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// UsageConfig contains usage accounting settings.
type UsageConfig struct {
	// Enabled controls whether usage records are persisted.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// RetentionDays is how long usage records are kept. Zero disables
	// pruning.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for the retention job.
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the output format: json or text.
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name component.
	Subsystem string `yaml:"subsystem"`

	// Path is the scrape endpoint path.
	Path string `yaml:"path"`

	// RequestDurationBuckets overrides the latency histogram buckets.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}
