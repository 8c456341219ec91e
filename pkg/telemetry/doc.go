// Package telemetry configures the relay's observability: structured
// logging via log/slog and Prometheus metrics in the metrics
// subpackage.
package telemetry
