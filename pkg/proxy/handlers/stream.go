package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scribe-hq/hermes/pkg/prompt"
	"scribe-hq/hermes/pkg/providers"
	"scribe-hq/hermes/pkg/proxy"
	"scribe-hq/hermes/pkg/proxy/middleware"
	"scribe-hq/hermes/pkg/proxy/types"
	"scribe-hq/hermes/pkg/relay"
	"scribe-hq/hermes/pkg/telemetry/metrics"
	"scribe-hq/hermes/pkg/usage"
)

// StreamHandler relays chat completions: it expands prompt references,
// opens the upstream stream, and re-encodes the token stream into the
// relay wire format.
type StreamHandler struct {
	provider providers.Provider
	expander *prompt.Expander
	ledger   *usage.Ledger
	metrics  *metrics.Collector
}

// NewStreamHandler creates the relay stream handler. The ledger and
// metrics collector are optional; nil disables usage recording and
// metrics respectively.
func NewStreamHandler(provider providers.Provider, expander *prompt.Expander, ledger *usage.Ledger, collector *metrics.Collector) *StreamHandler {
	return &StreamHandler{
		provider: provider,
		expander: expander,
		ledger:   ledger,
		metrics:  collector,
	}
}

// ServeHTTP implements http.Handler.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed, use POST", "", types.CodeInvalidValue))
		return
	}

	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	userID := proxy.ExtractUserID(r)
	startTime := time.Now()

	req, err := proxy.ParseStreamGenerateRequest(r)
	if err != nil {
		var reqErr *proxy.RequestError
		if errors.As(err, &reqErr) {
			_ = proxy.WriteErrorResponse(w, reqErr.ToErrorResponse())
			return
		}
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(err.Error(), "body", types.CodeInvalidValue))
		return
	}

	messages := h.expandMessages(ctx, req.Messages)

	providerReq := &providers.CompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.EffectiveTemperature(),
		MaxTokens:   req.EffectiveMaxTokens(),
		Stream:      true,
	}

	slog.InfoContext(ctx, "stream request started",
		"request_id", requestID,
		"user_id", userID,
		"model", req.Model,
		"message_count", len(messages),
	)

	chunks, err := h.provider.StreamCompletion(ctx, providerReq)
	if err != nil {
		// Nothing has been written yet, so the failure goes out as a
		// structured error rather than an in-band escape.
		h.writePreStreamError(ctx, w, requestID, req.Model, err)
		h.recordRequest(req.Model, "error", startTime)
		return
	}

	proxy.SetStreamHeaders(w)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	var finalUsage *providers.TokenUsage
	status := "success"

	for chunk := range chunks {
		if chunk.Error != nil {
			if ctx.Err() != nil {
				// Client is gone; write neither the escape nor the
				// usage marker.
				h.logCancelled(ctx, requestID, req.Model)
				h.recordRequest(req.Model, "cancelled", startTime)
				return
			}

			category, message := relay.Classify(chunk.Error)
			slog.ErrorContext(ctx, "upstream stream failed",
				"request_id", requestID,
				"model", req.Model,
				"category", string(category),
				"error", chunk.Error,
			)
			if h.metrics != nil {
				h.metrics.RecordStreamError(string(category))
			}

			if _, err := w.Write(relay.EncodeError(message)); err != nil {
				slog.WarnContext(ctx, "failed to write error escape", "request_id", requestID, "error", err)
			}
			flush()
			status = "error"
			break
		}

		wrote := false

		if chunk.Delta != "" {
			if _, err := w.Write([]byte(chunk.Delta)); err != nil {
				h.logCancelled(ctx, requestID, req.Model)
				h.recordRequest(req.Model, "cancelled", startTime)
				return
			}
			wrote = true
		}

		// The usage frame rides the same flush as the fragment that
		// carried it, so content and usage reach the client together.
		if chunk.Usage != nil {
			finalUsage = chunk.Usage
			frame, err := relay.EncodeUsage(chunk.Usage)
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode usage record", "request_id", requestID, "error", err)
			} else if _, err := w.Write(frame); err != nil {
				slog.WarnContext(ctx, "failed to write usage record", "request_id", requestID, "error", err)
			} else {
				wrote = true
			}
		}

		if wrote {
			flush()
		}
	}

	if ctx.Err() != nil {
		h.logCancelled(ctx, requestID, req.Model)
		h.recordRequest(req.Model, "cancelled", startTime)
		return
	}

	if finalUsage != nil && status == "success" {
		h.recordUsage(ctx, requestID, userID, req.Model, finalUsage)
	}

	h.recordRequest(req.Model, status, startTime)

	slog.InfoContext(ctx, "stream request completed",
		"request_id", requestID,
		"model", req.Model,
		"status", status,
		"latency_ms", time.Since(startTime).Milliseconds(),
	)
}

// expandMessages resolves prompt references and records the outcome.
func (h *StreamHandler) expandMessages(ctx context.Context, messages []providers.Message) []providers.Message {
	if h.expander == nil {
		return messages
	}

	expanded := h.expander.ExpandMessages(ctx, messages)

	if h.metrics != nil {
		for i := range messages {
			if messages[i].Role != providers.RoleSystem || !strings.Contains(messages[i].Content, prompt.MarkerPrefix) {
				continue
			}
			if strings.Contains(expanded[i].Content, prompt.MarkerPrefix) {
				h.metrics.RecordExpansion("fallback")
			} else {
				h.metrics.RecordExpansion("resolved")
			}
		}
	}

	return expanded
}

// writePreStreamError maps a failure before the first byte into a
// structured error response with the classified message.
func (h *StreamHandler) writePreStreamError(ctx context.Context, w http.ResponseWriter, requestID, model string, err error) {
	if ctx.Err() != nil {
		return
	}

	var valErr *providers.ValidationError
	if errors.As(err, &valErr) {
		_ = proxy.WriteErrorResponse(w,
			types.NewInvalidRequestError(valErr.Message, valErr.Field, types.CodeInvalidValue))
		return
	}

	category, message := relay.Classify(err)
	slog.ErrorContext(ctx, "upstream request failed before streaming",
		"request_id", requestID,
		"model", model,
		"category", string(category),
		"error", err,
	)
	if h.metrics != nil {
		h.metrics.RecordStreamError(string(category))
	}

	_ = proxy.WriteJSONResponse(w, http.StatusInternalServerError,
		types.NewErrorResponse(message, types.ErrorTypeServerError, "", types.CodeProviderError))
}

// recordUsage persists the usage record. Persistence failures are
// logged, never surfaced; the stream already completed.
func (h *StreamHandler) recordUsage(ctx context.Context, requestID, userID, model string, u *providers.TokenUsage) {
	if h.metrics != nil {
		h.metrics.RecordTokens(model, u.PromptTokens, u.CompletionTokens)
	}
	if h.ledger == nil {
		return
	}
	if err := h.ledger.Record(requestID, userID, model, u); err != nil {
		slog.ErrorContext(ctx, "failed to record usage",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
	}
}

func (h *StreamHandler) recordRequest(model, status string, startTime time.Time) {
	if h.metrics != nil {
		h.metrics.RecordRequest(model, status, time.Since(startTime))
	}
}

func (h *StreamHandler) logCancelled(ctx context.Context, requestID, model string) {
	slog.WarnContext(ctx, "client disconnected during streaming",
		"request_id", requestID,
		"model", model,
	)
}
