package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"scribe-hq/hermes/pkg/providers"
)

func newTestLedger(t *testing.T, retentionDays int) *Ledger {
	t.Helper()
	ledger, err := NewLedger(&LedgerConfig{
		Path:          filepath.Join(t.TempDir(), "usage.db"),
		RetentionDays: retentionDays,
	})
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestLedgerRecordAndTotals(t *testing.T) {
	ledger := newTestLedger(t, 90)
	ctx := context.Background()

	usages := []providers.TokenUsage{
		{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
	}
	for i, u := range usages {
		if err := ledger.Record("req-1", "u1", "gpt-4o", &u); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}
	if err := ledger.Record("req-2", "u2", "gpt-4o", &providers.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	since := time.Now().UTC().Add(-time.Hour)

	t.Run("per user", func(t *testing.T) {
		totals, err := ledger.TotalsSince(ctx, "u1", since)
		if err != nil {
			t.Fatalf("TotalsSince() error = %v", err)
		}
		if totals.Requests != 2 {
			t.Errorf("requests = %d, want 2", totals.Requests)
		}
		if totals.TotalTokens != 40 {
			t.Errorf("total tokens = %d, want 40", totals.TotalTokens)
		}
		if totals.PromptTokens != 15 || totals.CompletionTokens != 25 {
			t.Errorf("prompt/completion = %d/%d, want 15/25", totals.PromptTokens, totals.CompletionTokens)
		}
	})

	t.Run("all users", func(t *testing.T) {
		totals, err := ledger.TotalsSince(ctx, "", since)
		if err != nil {
			t.Fatalf("TotalsSince() error = %v", err)
		}
		if totals.Requests != 3 {
			t.Errorf("requests = %d, want 3", totals.Requests)
		}
		if totals.TotalTokens != 42 {
			t.Errorf("total tokens = %d, want 42", totals.TotalTokens)
		}
	})

	t.Run("empty window", func(t *testing.T) {
		totals, err := ledger.TotalsSince(ctx, "u1", time.Now().UTC().Add(time.Hour))
		if err != nil {
			t.Fatalf("TotalsSince() error = %v", err)
		}
		if totals.Requests != 0 || totals.TotalTokens != 0 {
			t.Errorf("totals = %+v, want zeros for a future cutoff", totals)
		}
	})
}

func TestLedgerListRecent(t *testing.T) {
	ledger := newTestLedger(t, 90)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := ledger.Record("req", "u1", "gpt-4o", &providers.TokenUsage{TotalTokens: i + 1}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	records, err := ledger.ListRecent(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].TotalTokens != 3 || records[1].TotalTokens != 2 {
		t.Errorf("records = [%d %d], want newest first [3 2]",
			records[0].TotalTokens, records[1].TotalTokens)
	}

	other, err := ledger.ListRecent(ctx, "u2", 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("len(records) for u2 = %d, want 0", len(other))
	}
}

func TestLedgerPrune(t *testing.T) {
	ledger := newTestLedger(t, 30)
	ctx := context.Background()

	if err := ledger.Record("req-new", "u1", "gpt-4o", &providers.TokenUsage{TotalTokens: 1}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// Backdate one record past the retention window.
	old := time.Now().UTC().AddDate(0, 0, -60)
	if _, err := ledger.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, request_id, user_id, model, prompt_tokens, completion_tokens, total_tokens, recorded_at)
		VALUES ('old-id', 'req-old', 'u1', 'gpt-4o', 0, 0, 1, ?)`, old); err != nil {
		t.Fatalf("backdate insert error = %v", err)
	}

	deleted, err := ledger.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	totals, err := ledger.TotalsSince(ctx, "u1", time.Time{})
	if err != nil {
		t.Fatalf("TotalsSince() error = %v", err)
	}
	if totals.Requests != 1 {
		t.Errorf("requests after prune = %d, want 1", totals.Requests)
	}
}

func TestLedgerPruneDisabled(t *testing.T) {
	ledger := newTestLedger(t, 0)

	deleted, err := ledger.Prune(context.Background())
	if err != nil {
		t.Errorf("Prune() error = %v, want nil", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0 when retention is disabled", deleted)
	}
}
