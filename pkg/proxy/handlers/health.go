package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"scribe-hq/hermes/pkg/proxy"
)

// healthStatus is the body of health and readiness responses.
type healthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// HealthHandler serves the liveness probe. It answers as long as the
// process is serving requests.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates the liveness handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, healthStatus{
		Status:  "ok",
		Version: h.version,
	})
}

// ReadyCheck probes one dependency. A non-nil error marks the relay
// not ready.
type ReadyCheck func(ctx context.Context) error

// ReadyHandler serves the readiness probe: it runs each dependency
// check and reports 503 if any fails.
type ReadyHandler struct {
	checks map[string]ReadyCheck
}

// NewReadyHandler creates the readiness handler over named checks.
func NewReadyHandler(checks map[string]ReadyCheck) *ReadyHandler {
	return &ReadyHandler{checks: checks}
}

// ServeHTTP implements http.Handler.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			_ = proxy.WriteJSONResponse(w, http.StatusServiceUnavailable, healthStatus{
				Status: "not ready",
			})
			return
		}
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, healthStatus{Status: "ready"})
}
