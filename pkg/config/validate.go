package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %q: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors. The first error found
// is returned; a valid configuration returns nil.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return &ValidationError{Field: "server.listen_address", Message: "listen address is required"}
	}

	if cfg.Provider.APIKey == "" || strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return &ValidationError{
			Field:   "provider.api_key",
			Message: "API key not configured; set provider.api_key or HERMES_PROVIDER_API_KEY",
		}
	}

	if cfg.Provider.BaseURL == "" {
		return &ValidationError{Field: "provider.base_url", Message: "base URL is required"}
	}
	u, err := url.Parse(cfg.Provider.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{
			Field:   "provider.base_url",
			Message: fmt.Sprintf("invalid base URL %q: must be an absolute http(s) URL", cfg.Provider.BaseURL),
		}
	}

	if cfg.Provider.Timeout < 0 {
		return &ValidationError{Field: "provider.timeout", Message: "timeout must not be negative"}
	}

	if cfg.Store.Path == "" {
		return &ValidationError{Field: "store.path", Message: "prompt store path is required"}
	}

	if cfg.Usage.Enabled && cfg.Usage.Path == "" {
		return &ValidationError{Field: "usage.path", Message: "usage store path is required when usage is enabled"}
	}
	if cfg.Usage.RetentionDays < 0 {
		return &ValidationError{Field: "usage.retention_days", Message: "retention days must not be negative"}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q: must be debug, info, warn or error", cfg.Telemetry.Logging.Level),
		}
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q: must be json or text", cfg.Telemetry.Logging.Format),
		}
	}

	return nil
}
