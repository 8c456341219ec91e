package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"scribe-hq/hermes/pkg/config"
)

// SetupLogging configures the process-wide slog default logger from
// the telemetry configuration. It returns the configured logger so
// callers can attach component attributes.
func SetupLogging(cfg *config.LoggingConfig) (*slog.Logger, error) {
	return setupLogging(cfg, os.Stdout)
}

func setupLogging(cfg *config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
