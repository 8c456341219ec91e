package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path. It applies default values and validates the configuration.
// Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention HERMES_SECTION_FIELD (e.g. HERMES_PROVIDER_API_KEY) and
// always take precedence over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies HERMES_* environment variables to the
// configuration. Unparseable values are ignored, keeping the file
// value.
func applyEnvOverrides(cfg *Config) {
	envString("HERMES_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("HERMES_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("HERMES_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("HERMES_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("HERMES_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envBool("HERMES_SERVER_CORS_ENABLED", &cfg.Server.CORS.Enabled)

	envString("HERMES_PROVIDER_NAME", &cfg.Provider.Name)
	envString("HERMES_PROVIDER_BASE_URL", &cfg.Provider.BaseURL)
	envString("HERMES_PROVIDER_API_KEY", &cfg.Provider.APIKey)
	envString("HERMES_PROVIDER_DEFAULT_MODEL", &cfg.Provider.DefaultModel)
	envDuration("HERMES_PROVIDER_TIMEOUT", &cfg.Provider.Timeout)
	envInt("HERMES_PROVIDER_MAX_IDLE_CONNS", &cfg.Provider.MaxIdleConns)

	envString("HERMES_STORE_PATH", &cfg.Store.Path)
	envInt("HERMES_STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns)

	envBool("HERMES_USAGE_ENABLED", &cfg.Usage.Enabled)
	envString("HERMES_USAGE_PATH", &cfg.Usage.Path)
	envInt("HERMES_USAGE_RETENTION_DAYS", &cfg.Usage.RetentionDays)
	envString("HERMES_USAGE_PRUNE_SCHEDULE", &cfg.Usage.PruneSchedule)

	envString("HERMES_LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("HERMES_LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("HERMES_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("HERMES_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
