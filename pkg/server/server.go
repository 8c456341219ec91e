// Package server provides the relay's HTTP server: route setup, the
// middleware chain, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"scribe-hq/hermes/pkg/config"
	"scribe-hq/hermes/pkg/prompt"
	"scribe-hq/hermes/pkg/providers"
	"scribe-hq/hermes/pkg/proxy/handlers"
	"scribe-hq/hermes/pkg/proxy/middleware"
	"scribe-hq/hermes/pkg/telemetry/metrics"
	"scribe-hq/hermes/pkg/usage"
)

// Server is the relay HTTP server.
type Server struct {
	config       *config.ServerConfig
	provider     providers.Provider
	store        *prompt.Store
	ledger       *usage.Ledger
	collector    *metrics.Collector
	metricsPath  string
	version      string
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options carries the server's dependencies. Ledger and Collector are
// optional.
type Options struct {
	Config    *config.ServerConfig
	Provider  providers.Provider
	Store     *prompt.Store
	Ledger    *usage.Ledger
	Collector *metrics.Collector

	// MetricsPath is where the scrape endpoint is mounted when
	// Collector is set.
	MetricsPath string

	// Version is reported by the health endpoint.
	Version string
}

// NewServer creates a relay server from its dependencies.
func NewServer(opts Options) *Server {
	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		config:      opts.Config,
		provider:    opts.Provider,
		store:       opts.Store,
		ledger:      opts.Ledger,
		collector:   opts.Collector,
		metricsPath: metricsPath,
		version:     opts.Version,
	}
}

// Start starts the HTTP server and blocks until shutdown: context
// cancellation, SIGINT/SIGTERM, or a listener error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting relay server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, letting in-flight streams
// finish within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("relay server stopped")
	})

	return shutdownErr
}

// Handler returns the configured HTTP handler with the full middleware
// chain applied. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	expander := prompt.NewExpander(s.store)
	streamHandler := handlers.NewStreamHandler(s.provider, expander, s.ledger, s.collector)
	promptsHandler := handlers.NewPromptsHandler(s.store)
	selectionsHandler := handlers.NewSelectionsHandler(s.store)
	healthHandler := handlers.NewHealthHandler(s.version)
	readyHandler := handlers.NewReadyHandler(s.readyChecks())

	mux.Handle("/api/ai/stream", streamHandler)
	mux.HandleFunc("/api/prompts", promptsHandler.Collection)
	mux.HandleFunc("/api/prompts/{id}", promptsHandler.Item)
	mux.HandleFunc("/api/selections", selectionsHandler.Collection)
	mux.HandleFunc("/api/selections/{id}", selectionsHandler.Item)
	mux.Handle("/health", healthHandler)
	mux.Handle("/ready", readyHandler)

	if s.ledger != nil {
		mux.Handle("/api/usage", handlers.NewUsageHandler(s.ledger))
	}

	if s.collector != nil {
		mux.Handle(s.metricsPath, s.collector.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(s.corsConfig())(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// readyChecks builds the dependency probes for the readiness endpoint.
func (s *Server) readyChecks() map[string]handlers.ReadyCheck {
	checks := map[string]handlers.ReadyCheck{
		"prompt_store": func(ctx context.Context) error {
			_, err := s.store.ListPrompts(ctx)
			return err
		},
	}
	return checks
}

// corsConfig converts the file configuration to middleware form.
func (s *Server) corsConfig() *middleware.CORSConfig {
	return &middleware.CORSConfig{
		Enabled:        s.config.CORS.Enabled,
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: s.config.CORS.AllowedMethods,
		AllowedHeaders: s.config.CORS.AllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         s.config.CORS.MaxAge,
	}
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
