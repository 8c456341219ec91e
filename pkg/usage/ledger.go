// Package usage persists the token accounting records emitted at the
// end of each relay stream and prunes them on a retention schedule.
package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scribe-hq/hermes/pkg/providers"
)

// Record is one persisted usage entry.
type Record struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	UserID           string    `json:"user_id"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// Totals aggregates usage over a query window.
type Totals struct {
	Requests         int64 `json:"requests"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// LedgerConfig contains configuration for the usage ledger.
type LedgerConfig struct {
	// Path is the database file path.
	Path string

	// RetentionDays is how long records are kept. Zero disables
	// pruning.
	RetentionDays int

	// PruneSchedule is the cron expression for the retention job.
	PruneSchedule string

	// BusyTimeout is the wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultLedgerConfig returns the default ledger configuration.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		Path:          "data/usage.db",
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		BusyTimeout:   5 * time.Second,
	}
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id                TEXT PRIMARY KEY,
	request_id        TEXT NOT NULL,
	user_id           TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	recorded_at       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_recorded_at ON usage_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id);
`

// Ledger is the SQLite-backed usage store.
type Ledger struct {
	db     *sql.DB
	config *LedgerConfig
	logger *slog.Logger
}

// NewLedger opens the usage database and initializes its schema.
func NewLedger(config *LedgerConfig) (*Ledger, error) {
	if config == nil {
		config = DefaultLedgerConfig()
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "usage.ledger")

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		config.Path, config.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	l := &Ledger{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("usage ledger initialized",
		"path", config.Path,
		"retention_days", config.RetentionDays,
	)

	return l, nil
}

// initialize creates the schema.
func (l *Ledger) initialize() error {
	if _, err := l.db.Exec(ledgerSchema); err != nil {
		return fmt.Errorf("failed to create usage schema: %w", err)
	}
	return nil
}

// Record persists one usage entry. It is called from the stream
// handler after the response has completed, so the request context may
// already be cancelled; Record uses its own short deadline.
func (l *Ledger) Record(requestID, userID, model string, usage *providers.TokenUsage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, request_id, user_id, model, prompt_tokens, completion_tokens, total_tokens, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), requestID, userID, model,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// TotalsSince aggregates usage recorded after the cutoff. An empty
// userID aggregates across all users.
func (l *Ledger) TotalsSince(ctx context.Context, userID string, since time.Time) (*Totals, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0)
		FROM usage_records WHERE recorded_at >= ?`
	args := []interface{}{since}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	var t Totals
	err := l.db.QueryRowContext(ctx, query, args...).
		Scan(&t.Requests, &t.PromptTokens, &t.CompletionTokens, &t.TotalTokens)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return &t, nil
}

// ListRecent returns the most recent usage records for a user.
func (l *Ledger) ListRecent(ctx context.Context, userID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, request_id, user_id, model, prompt_tokens, completion_tokens, total_tokens, recorded_at
		FROM usage_records
		WHERE user_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.RequestID, &r.UserID, &r.Model,
			&r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return records, nil
}

// Prune deletes records older than the retention window. Returns the
// number of records deleted.
func (l *Ledger) Prune(ctx context.Context) (int64, error) {
	if l.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -l.config.RetentionDays)
	result, err := l.db.ExecContext(ctx,
		"DELETE FROM usage_records WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}
	return deleted, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close usage ledger: %w", err)
	}
	l.logger.Info("usage ledger closed")
	return nil
}
