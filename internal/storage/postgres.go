package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{sqlStore: &sqlStore{db: db, logger: logger, numbered: true}}, nil
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Quest completions
	CREATE TABLE IF NOT EXISTS quest_completions (
		quest_id TEXT NOT NULL,
		address TEXT NOT NULL,
		completed_at TIMESTAMPTZ DEFAULT NOW(),
		PRIMARY KEY (quest_id, address)
	);

	-- Step completions
	CREATE TABLE IF NOT EXISTS step_completions (
		quest_id TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		address TEXT NOT NULL,
		completed_at TIMESTAMPTZ DEFAULT NOW(),
		PRIMARY KEY (quest_id, step_index, address)
	);

	-- XP balances
	CREATE TABLE IF NOT EXISTS xp_balances (
		address TEXT PRIMARY KEY,
		xp BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- XP ledger
	CREATE TABLE IF NOT EXISTS xp_events (
		id UUID PRIMARY KEY,
		address TEXT NOT NULL,
		amount BIGINT NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
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
