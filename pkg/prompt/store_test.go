package prompt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(&StoreConfig{
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

func TestStorePromptCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.AddPrompt(ctx, "novelist", "你是一位小说编辑。")
	if err != nil {
		t.Fatalf("AddPrompt() error = %v", err)
	}
	if created.ID == "" {
		t.Error("AddPrompt() should assign an id")
	}

	got, err := store.GetPrompt(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetPrompt() error = %v", err)
	}
	if got.Name != "novelist" || got.Content != "你是一位小说编辑。" {
		t.Errorf("prompt = {%q %q}, want {novelist 你是一位小说编辑。}", got.Name, got.Content)
	}

	if err := store.UpdatePromptContent(ctx, created.ID, "新内容"); err != nil {
		t.Fatalf("UpdatePromptContent() error = %v", err)
	}
	got, err = store.GetPrompt(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetPrompt() after update error = %v", err)
	}
	if got.Content != "新内容" {
		t.Errorf("content = %q, want %q", got.Content, "新内容")
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("updated_at should not precede created_at")
	}

	if err := store.RemovePrompt(ctx, created.ID); err != nil {
		t.Fatalf("RemovePrompt() error = %v", err)
	}
	if _, err := store.GetPrompt(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPrompt() after remove error = %v, want ErrNotFound", err)
	}
}

func TestStoreNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetPrompt(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPrompt() error = %v, want ErrNotFound", err)
	}
	if err := store.UpdatePromptContent(ctx, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePromptContent() error = %v, want ErrNotFound", err)
	}
	if err := store.RemovePrompt(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemovePrompt() error = %v, want ErrNotFound", err)
	}
	if err := store.AddSelection(ctx, "u1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddSelection() error = %v, want ErrNotFound", err)
	}
}

func TestStoreListPromptsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddPrompt(ctx, "first", "a")
	if err != nil {
		t.Fatalf("AddPrompt() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := store.AddPrompt(ctx, "second", "b")
	if err != nil {
		t.Fatalf("AddPrompt() error = %v", err)
	}

	prompts, err := store.ListPrompts(ctx)
	if err != nil {
		t.Fatalf("ListPrompts() error = %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("len(prompts) = %d, want 2", len(prompts))
	}
	if prompts[0].ID != second.ID || prompts[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", prompts[0].Name, prompts[1].Name)
	}
}

func TestStoreSelections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.AddPrompt(ctx, "shared", "content")
	if err != nil {
		t.Fatalf("AddPrompt() error = %v", err)
	}

	if err := store.AddSelection(ctx, "u1", p.ID); err != nil {
		t.Fatalf("AddSelection() error = %v", err)
	}

	t.Run("idempotent", func(t *testing.T) {
		if err := store.AddSelection(ctx, "u1", p.ID); err != nil {
			t.Errorf("repeated AddSelection() error = %v, want nil", err)
		}
		selections, err := store.ListSelections(ctx, "u1")
		if err != nil {
			t.Fatalf("ListSelections() error = %v", err)
		}
		if len(selections) != 1 {
			t.Errorf("len(selections) = %d, want 1", len(selections))
		}
	})

	t.Run("is selected", func(t *testing.T) {
		selected, err := store.IsSelected(ctx, "u1", p.ID)
		if err != nil {
			t.Fatalf("IsSelected() error = %v", err)
		}
		if !selected {
			t.Error("IsSelected() = false, want true")
		}
		selected, err = store.IsSelected(ctx, "u2", p.ID)
		if err != nil {
			t.Fatalf("IsSelected() error = %v", err)
		}
		if selected {
			t.Error("IsSelected() for other user = true, want false")
		}
	})

	t.Run("per user", func(t *testing.T) {
		selections, err := store.ListSelections(ctx, "u2")
		if err != nil {
			t.Fatalf("ListSelections() error = %v", err)
		}
		if len(selections) != 0 {
			t.Errorf("len(selections) for u2 = %d, want 0", len(selections))
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := store.RemoveSelection(ctx, "u1", p.ID); err != nil {
			t.Fatalf("RemoveSelection() error = %v", err)
		}
		// Removing again is not an error.
		if err := store.RemoveSelection(ctx, "u1", p.ID); err != nil {
			t.Errorf("repeated RemoveSelection() error = %v, want nil", err)
		}
		selected, err := store.IsSelected(ctx, "u1", p.ID)
		if err != nil {
			t.Fatalf("IsSelected() error = %v", err)
		}
		if selected {
			t.Error("IsSelected() after remove = true, want false")
		}
	})
}

func TestStoreCascadeOnPromptDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.AddPrompt(ctx, "doomed", "content")
	if err != nil {
		t.Fatalf("AddPrompt() error = %v", err)
	}
	if err := store.AddSelection(ctx, "u1", p.ID); err != nil {
		t.Fatalf("AddSelection() error = %v", err)
	}

	if err := store.RemovePrompt(ctx, p.ID); err != nil {
		t.Fatalf("RemovePrompt() error = %v", err)
	}

	selections, err := store.ListSelections(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSelections() error = %v", err)
	}
	if len(selections) != 0 {
		t.Errorf("len(selections) after cascade = %d, want 0", len(selections))
	}
}
