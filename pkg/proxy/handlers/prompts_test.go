package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe-hq/hermes/pkg/prompt"
)

func newTestStore(t *testing.T) *prompt.Store {
	t.Helper()
	store, err := prompt.NewStore(&prompt.StoreConfig{
		Path:         filepath.Join(t.TempDir(), "prompts.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPromptsHandlerCollection(t *testing.T) {
	store := newTestStore(t)
	handler := NewPromptsHandler(store)

	t.Run("create", func(t *testing.T) {
		body := `{"name":"novelist","content":"你是一位小说编辑。"}`
		req := httptest.NewRequest(http.MethodPost, "/api/prompts", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.Collection(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
		}
		var created prompt.Prompt
		if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if created.ID == "" || created.Name != "novelist" {
			t.Errorf("created = %+v, want assigned id and given name", created)
		}
	})

	t.Run("create requires fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/prompts", strings.NewReader(`{"name":"x"}`))
		w := httptest.NewRecorder()
		handler.Collection(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/prompts", nil)
		w := httptest.NewRecorder()
		handler.Collection(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var prompts []*prompt.Prompt
		if err := json.Unmarshal(w.Body.Bytes(), &prompts); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(prompts) != 1 {
			t.Errorf("len(prompts) = %d, want 1", len(prompts))
		}
	})
}

func TestPromptsHandlerItem(t *testing.T) {
	store := newTestStore(t)
	handler := NewPromptsHandler(store)

	created, err := store.AddPrompt(t.Context(), "subject", "original")
	if err != nil {
		t.Fatalf("AddPrompt() error = %v", err)
	}

	itemRequest := func(method, id, body string) *httptest.ResponseRecorder {
		var reader *strings.Reader
		if body == "" {
			reader = strings.NewReader("")
		} else {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, "/api/prompts/"+id, reader)
		req.SetPathValue("id", id)
		w := httptest.NewRecorder()
		handler.Item(w, req)
		return w
	}

	t.Run("get", func(t *testing.T) {
		w := itemRequest(http.MethodGet, created.ID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var got prompt.Prompt
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if got.Content != "original" {
			t.Errorf("content = %q, want %q", got.Content, "original")
		}
	})

	t.Run("get missing", func(t *testing.T) {
		w := itemRequest(http.MethodGet, "no-such-id", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("update", func(t *testing.T) {
		w := itemRequest(http.MethodPut, created.ID, `{"content":"revised"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var got prompt.Prompt
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if got.Content != "revised" {
			t.Errorf("content = %q, want %q", got.Content, "revised")
		}
	})

	t.Run("delete", func(t *testing.T) {
		w := itemRequest(http.MethodDelete, created.ID, "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
		w = itemRequest(http.MethodGet, created.ID, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status after delete = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestSelectionsHandler(t *testing.T) {
	store := newTestStore(t)
	handler := NewSelectionsHandler(store)

	created, err := store.AddPrompt(t.Context(), "shared", "content")
	if err != nil {
		t.Fatalf("AddPrompt() error = %v", err)
	}

	t.Run("requires user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/selections", nil)
		w := httptest.NewRecorder()
		handler.Collection(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("add", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/selections",
			strings.NewReader(`{"prompt_id":"`+created.ID+`"}`))
		req.Header.Set("X-User-ID", "u1")
		w := httptest.NewRecorder()
		handler.Collection(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
	})

	t.Run("add unknown prompt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/selections",
			strings.NewReader(`{"prompt_id":"no-such-id"}`))
		req.Header.Set("X-User-ID", "u1")
		w := httptest.NewRecorder()
		handler.Collection(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/selections", nil)
		req.Header.Set("X-User-ID", "u1")
		w := httptest.NewRecorder()
		handler.Collection(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var prompts []*prompt.Prompt
		if err := json.Unmarshal(w.Body.Bytes(), &prompts); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(prompts) != 1 || prompts[0].ID != created.ID {
			t.Errorf("selections = %+v, want the one selected prompt", prompts)
		}
	})

	t.Run("remove", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/selections/"+created.ID, nil)
		req.Header.Set("X-User-ID", "u1")
		req.SetPathValue("id", created.ID)
		w := httptest.NewRecorder()
		handler.Item(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
	})
}
