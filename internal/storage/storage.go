package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/questhub/internal/config"
)

// CompletionStore records quest and step completions per address.
// Addresses are compared case-insensitively.
type CompletionStore interface {
	GetCompletion(ctx context.Context, questID, address string) (bool, error)
	SetCompletion(ctx context.Context, questID, address string) error
	GetStepCompletion(ctx context.Context, questID string, step int, address string) (bool, error)
	SetStepCompletion(ctx context.Context, questID string, step int, address string) error
	GetUserCompletions(ctx context.Context, address string) ([]string, error)
	GetUserStepCompletions(ctx context.Context, questID, address string) ([]int, error)
	GetAllUserStepCompletions(ctx context.Context, address string) (map[string][]int, error)

	// CompleteQuest records the completion and credits xp in one step.
	// It reports false, and credits nothing, when the completion already existed.
	CompleteQuest(ctx context.Context, questID, address string, xp int64) (bool, error)
	// CompleteStep is CompleteQuest for a single step.
	CompleteStep(ctx context.Context, questID string, step int, address string, xp int64) (bool, error)
}

// XPStore handles XP balances
type XPStore interface {
	AddXP(ctx context.Context, address string, amount int64) error
	GetUserXP(ctx context.Context, address string) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	CompletionStore
	XPStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// LeaderboardEntry is one row of the XP leaderboard
type LeaderboardEntry struct {
	Rank        int
	Address     string
	XP          int64
	Completions int
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	case "json":
		return NewJSONStore(cfg.JSON.Path, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
