package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"scribe-hq/hermes/pkg/prompt"
	"scribe-hq/hermes/pkg/proxy"
	"scribe-hq/hermes/pkg/proxy/types"
)

// PromptsHandler serves the prompt library CRUD endpoints.
type PromptsHandler struct {
	store *prompt.Store
}

// NewPromptsHandler creates the prompt library handler.
func NewPromptsHandler(store *prompt.Store) *PromptsHandler {
	return &PromptsHandler{store: store}
}

// Collection handles /api/prompts: GET lists, POST creates.
func (h *PromptsHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		prompts, err := h.store.ListPrompts(r.Context())
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		_ = proxy.WriteJSONResponse(w, http.StatusOK, prompts)

	case http.MethodPost:
		var req types.AddPromptRequest
		if err := proxy.ParseJSONRequest(r, &req); err != nil {
			writeParseError(w, err)
			return
		}
		p, err := h.store.AddPrompt(r.Context(), req.Name, req.Content)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		_ = proxy.WriteJSONResponse(w, http.StatusCreated, p)

	default:
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed", "", types.CodeInvalidValue))
	}
}

// Item handles /api/prompts/{id}: GET reads, PUT updates content,
// DELETE removes.
func (h *PromptsHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		_ = proxy.WriteErrorResponse(w,
			types.NewInvalidRequestError("prompt id is required", "id", types.CodeMissingField))
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := h.store.GetPrompt(r.Context(), id)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		_ = proxy.WriteJSONResponse(w, http.StatusOK, p)

	case http.MethodPut:
		var req types.UpdatePromptRequest
		if err := proxy.ParseJSONRequest(r, &req); err != nil {
			writeParseError(w, err)
			return
		}
		if err := h.store.UpdatePromptContent(r.Context(), id, req.Content); err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		p, err := h.store.GetPrompt(r.Context(), id)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		_ = proxy.WriteJSONResponse(w, http.StatusOK, p)

	case http.MethodDelete:
		if err := h.store.RemovePrompt(r.Context(), id); err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed", "", types.CodeInvalidValue))
	}
}

// writeStoreError maps store failures to HTTP responses.
func (h *PromptsHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, prompt.ErrNotFound) {
		_ = proxy.WriteErrorResponse(w,
			types.NewNotFoundError("prompt not found", types.CodePromptNotFound))
		return
	}
	slog.ErrorContext(r.Context(), "prompt store operation failed", "error", err)
	_ = proxy.WriteErrorResponse(w, types.NewServerError("prompt store operation failed"))
}

// SelectionsHandler serves the per-user prompt selection endpoints.
// The user identity comes from the X-User-ID header.
type SelectionsHandler struct {
	store *prompt.Store
}

// NewSelectionsHandler creates the selections handler.
func NewSelectionsHandler(store *prompt.Store) *SelectionsHandler {
	return &SelectionsHandler{store: store}
}

// Collection handles /api/selections: GET lists the user's selected
// prompts, POST adds a selection.
func (h *SelectionsHandler) Collection(w http.ResponseWriter, r *http.Request) {
	userID := proxy.ExtractUserID(r)
	if userID == "" {
		_ = proxy.WriteErrorResponse(w,
			types.NewInvalidRequestError("X-User-ID header is required", "X-User-ID", types.CodeMissingField))
		return
	}

	switch r.Method {
	case http.MethodGet:
		prompts, err := h.store.ListSelections(r.Context(), userID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		_ = proxy.WriteJSONResponse(w, http.StatusOK, prompts)

	case http.MethodPost:
		var req types.SelectionRequest
		if err := proxy.ParseJSONRequest(r, &req); err != nil {
			writeParseError(w, err)
			return
		}
		if err := h.store.AddSelection(r.Context(), userID, req.PromptID); err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed", "", types.CodeInvalidValue))
	}
}

// Item handles DELETE /api/selections/{id}.
func (h *SelectionsHandler) Item(w http.ResponseWriter, r *http.Request) {
	userID := proxy.ExtractUserID(r)
	if userID == "" {
		_ = proxy.WriteErrorResponse(w,
			types.NewInvalidRequestError("X-User-ID header is required", "X-User-ID", types.CodeMissingField))
		return
	}

	promptID := r.PathValue("id")
	if promptID == "" {
		_ = proxy.WriteErrorResponse(w,
			types.NewInvalidRequestError("prompt id is required", "id", types.CodeMissingField))
		return
	}

	if r.Method != http.MethodDelete {
		_ = proxy.WriteJSONResponse(w, http.StatusMethodNotAllowed,
			types.NewInvalidRequestError("method not allowed", "", types.CodeInvalidValue))
		return
	}

	if err := h.store.RemoveSelection(r.Context(), userID, promptID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps store failures to HTTP responses.
func (h *SelectionsHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, prompt.ErrNotFound) {
		_ = proxy.WriteErrorResponse(w,
			types.NewNotFoundError("prompt not found", types.CodePromptNotFound))
		return
	}
	slog.ErrorContext(r.Context(), "selection store operation failed", "error", err)
	_ = proxy.WriteErrorResponse(w, types.NewServerError("selection store operation failed"))
}

// writeParseError maps request parsing failures to 400 responses.
func writeParseError(w http.ResponseWriter, err error) {
	var reqErr *proxy.RequestError
	if errors.As(err, &reqErr) {
		_ = proxy.WriteErrorResponse(w, reqErr.ToErrorResponse())
		return
	}
	_ = proxy.WriteErrorResponse(w,
		types.NewInvalidRequestError(err.Error(), "body", types.CodeInvalidValue))
}
