// Package prompt manages the encrypted prompt library: stored prompt
// templates, per-user selections of them, and the expansion of prompt
// markers inside conversation messages.
package prompt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a prompt id has no stored record.
var ErrNotFound = errors.New("prompt not found")

// Prompt is a stored prompt template. Content is the full template
// text; it is never logged.
type Prompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Selection records that a user has added a prompt to their library.
type Selection struct {
	UserID     string    `json:"user_id"`
	PromptID   string    `json:"prompt_id"`
	SelectedAt time.Time `json:"selected_at"`
}

// Lookup resolves prompt ids to content. The expander depends on this
// interface so tests can substitute an in-memory map.
type Lookup interface {
	GetPrompt(ctx context.Context, id string) (*Prompt, error)
}

// StoreConfig contains configuration for the SQLite prompt store.
type StoreConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Path:         "data/prompts.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
	}
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS prompts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS user_prompt_selections (
	user_id     TEXT NOT NULL,
	prompt_id   TEXT NOT NULL,
	selected_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, prompt_id),
	FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_selections_user ON user_prompt_selections(user_id);
`

// Store is the SQLite-backed prompt library.
type Store struct {
	db     *sql.DB
	config *StoreConfig
	logger *slog.Logger
}

// NewStore opens the prompt database and initializes its schema.
func NewStore(config *StoreConfig) (*Store, error) {
	if config == nil {
		config = DefaultStoreConfig()
	}

	logger := slog.Default().With("component", "prompt.store")

	// Pragmas go in the DSN so every pooled connection gets them, not
	// just the one that happens to run an Exec.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		config.Path, config.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &Store{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("prompt store initialized",
		"path", config.Path,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize creates the schema.
func (s *Store) initialize() error {
	if _, err := s.db.Exec(storeSchema); err != nil {
		return fmt.Errorf("failed to create prompt schema: %w", err)
	}

	return nil
}

// GetPrompt retrieves a prompt by id. Returns ErrNotFound when the id
// has no record.
func (s *Store) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	var p Prompt
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, content, created_at, updated_at FROM prompts WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return &p, nil
}

// AddPrompt stores a new prompt template and returns it with its
// generated id.
func (s *Store) AddPrompt(ctx context.Context, name, content string) (*Prompt, error) {
	now := time.Now().UTC()
	p := &Prompt{
		ID:        uuid.New().String(),
		Name:      name,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO prompts (id, name, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Content, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add prompt: %w", err)
	}

	s.logger.Info("prompt added", "prompt_id", p.ID, "name", p.Name)
	return p, nil
}

// UpdatePromptContent replaces a prompt's content. Returns ErrNotFound
// when the id has no record.
func (s *Store) UpdatePromptContent(ctx context.Context, id, content string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE prompts SET content = ?, updated_at = ? WHERE id = ?",
		content, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemovePrompt deletes a prompt and, via the schema's cascade, every
// selection of it. Returns ErrNotFound when the id has no record.
func (s *Store) RemovePrompt(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM prompts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove prompt: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	s.logger.Info("prompt removed", "prompt_id", id)
	return nil
}

// ListPrompts returns all stored prompts, newest first.
func (s *Store) ListPrompts(ctx context.Context) ([]*Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, content, created_at, updated_at FROM prompts ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	prompts := []*Prompt{}
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, nil
}

// AddSelection records that a user selected a prompt. Re-selecting an
// already selected prompt is not an error. Returns ErrNotFound when
// the prompt does not exist.
func (s *Store) AddSelection(ctx context.Context, userID, promptID string) error {
	if _, err := s.GetPrompt(ctx, promptID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_prompt_selections (user_id, prompt_id, selected_at) VALUES (?, ?, ?) ON CONFLICT(user_id, prompt_id) DO NOTHING",
		userID, promptID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to add selection: %w", err)
	}
	return nil
}

// RemoveSelection drops a user's selection of a prompt. Removing a
// selection that does not exist is not an error.
func (s *Store) RemoveSelection(ctx context.Context, userID, promptID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_prompt_selections WHERE user_id = ? AND prompt_id = ?",
		userID, promptID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove selection: %w", err)
	}
	return nil
}

// IsSelected reports whether the user has selected the prompt.
func (s *Store) IsSelected(ctx context.Context, userID, promptID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_prompt_selections WHERE user_id = ? AND prompt_id = ?",
		userID, promptID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check selection: %w", err)
	}
	return count > 0, nil
}

// ListSelections returns the prompts a user has selected, most recent
// selection first.
func (s *Store) ListSelections(ctx context.Context, userID string) ([]*Prompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.content, p.created_at, p.updated_at
		FROM prompts p
		JOIN user_prompt_selections s ON s.prompt_id = p.id
		WHERE s.user_id = ?
		ORDER BY s.selected_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	defer rows.Close()

	prompts := []*Prompt{}
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		prompts = append(prompts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	return prompts, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close prompt store: %w", err)
	}
	s.logger.Info("prompt store closed")
	return nil
}
