package handlers

import (
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"scribe-hq/hermes/pkg/proxy"
	"scribe-hq/hermes/pkg/proxy/types"
	"scribe-hq/hermes/pkg/usage"
)

// UsageHandler serves usage totals for the requesting user.
type UsageHandler struct {
	ledger *usage.Ledger
}

// NewUsageHandler creates the usage handler.
func NewUsageHandler(ledger *usage.Ledger) *UsageHandler {
	return &UsageHandler{ledger: ledger}
}

// usageSummary is the body of a usage response.
type usageSummary struct {
	Totals  *usage.Totals   `json:"totals"`
	Records []*usage.Record `json:"records,omitempty"`
}

// ServeHTTP implements http.Handler for GET /api/usage.
//
// Query parameters:
//   - days: aggregation window in days (default 30)
//   - records: include up to this many recent records (default 0)
func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed", "", types.CodeInvalidValue))
		return
	}

	userID := proxy.ExtractUserID(r)
	if userID == "" {
		_ = proxy.WriteErrorResponse(w,
			types.NewInvalidRequestError("X-User-ID header is required", "X-User-ID", types.CodeMissingField))
		return
	}

	days := 30
	if val := r.URL.Query().Get("days"); val != "" {
		d, err := strconv.Atoi(val)
		if err != nil || d <= 0 {
			_ = proxy.WriteErrorResponse(w,
				types.NewInvalidRequestError("days must be a positive integer", "days", types.CodeInvalidValue))
			return
		}
		days = d
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	totals, err := h.ledger.TotalsSince(r.Context(), userID, since)
	if err != nil {
		slog.ErrorContext(r.Context(), "usage query failed", "user_id", userID, "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewServerError("usage query failed"))
		return
	}

	summary := usageSummary{Totals: totals}

	if val := r.URL.Query().Get("records"); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			_ = proxy.WriteErrorResponse(w,
				types.NewInvalidRequestError("records must be a non-negative integer", "records", types.CodeInvalidValue))
			return
		}
		if limit > 0 {
			records, err := h.ledger.ListRecent(r.Context(), userID, limit)
			if err != nil {
				slog.ErrorContext(r.Context(), "usage query failed", "user_id", userID, "error", err)
				_ = proxy.WriteErrorResponse(w, types.NewServerError("usage query failed"))
				return
			}
			summary.Records = records
		}
	}

	_ = proxy.WriteJSONResponse(w, http.StatusOK, summary)
}
