package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scribe-hq/hermes/pkg/config"
)

// Collector owns the relay's Prometheus metrics and their registry.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	streamErrors    *prometheus.CounterVec
	expansionsTotal *prometheus.CounterVec
}

// NewCollector creates a collector with the specified configuration
// and registry. If registry is nil a new private registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "scribe"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "hermes"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// LLM streams run long; buckets cover 100ms to 5 minutes.
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of stream requests processed",
			},
			[]string{"model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of stream requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_tokens_total",
				Help:      "Total number of tokens processed",
			},
			[]string{"model", "type"},
		),

		streamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_errors_total",
				Help:      "Classified upstream failures by category",
			},
			[]string{"category"},
		),

		expansionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "prompt_expansions_total",
				Help:      "Prompt reference expansions by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.streamErrors,
		c.expansionsTotal,
	)

	return c
}

// RecordRequest records a completed stream request.
// Status is "success", "error" or "cancelled".
func (c *Collector) RecordRequest(model, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestsTotal.WithLabelValues(model, status).Inc()
	c.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordTokens records token counts for a completed request.
func (c *Collector) RecordTokens(model string, promptTokens, completionTokens int) {
	if !c.config.Enabled {
		return
	}
	if promptTokens > 0 {
		c.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordStreamError records a classified upstream failure.
func (c *Collector) RecordStreamError(category string) {
	if !c.config.Enabled {
		return
	}
	c.streamErrors.WithLabelValues(category).Inc()
}

// RecordExpansion records a prompt reference expansion.
// Result is "resolved" or "fallback".
func (c *Collector) RecordExpansion(result string) {
	if !c.config.Enabled {
		return
	}
	c.expansionsTotal.WithLabelValues(result).Inc()
}

// Handler returns the HTTP handler for the metrics scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
