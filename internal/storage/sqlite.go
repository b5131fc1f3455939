package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single writer connection serialises completion transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteStore{sqlStore: &sqlStore{db: db, logger: logger}}, nil
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Quest completions
	CREATE TABLE IF NOT EXISTS quest_completions (
		quest_id TEXT NOT NULL,
		address TEXT NOT NULL,
		completed_at TEXT DEFAULT (datetime('now')),
		PRIMARY KEY (quest_id, address)
	);

	-- Step completions
	CREATE TABLE IF NOT EXISTS step_completions (
		quest_id TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		address TEXT NOT NULL,
		completed_at TEXT DEFAULT (datetime('now')),
		PRIMARY KEY (quest_id, step_index, address)
	);

	-- XP balances
	CREATE TABLE IF NOT EXISTS xp_balances (
		address TEXT PRIMARY KEY,
		xp INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT DEFAULT (datetime('now'))
	);

	-- XP ledger
	CREATE TABLE IF NOT EXISTS xp_events (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_quest_completions_address ON quest_completions(address);
	CREATE INDEX IF NOT EXISTS idx_step_completions_address ON step_completions(address);
	CREATE INDEX IF NOT EXISTS idx_xp_balances_xp ON xp_balances(xp DESC);
	CREATE INDEX IF NOT EXISTS idx_xp_events_address ON xp_events(address);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations completed")
	return nil
}
