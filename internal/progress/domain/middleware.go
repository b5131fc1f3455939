package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/questhub/internal/storage"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	VerifyQuest(ctx context.Context, questID, address string) (*QuestResult, error)
	VerifyStep(ctx context.Context, questID string, stepIndex int, address string) (*StepResult, error)
	StepStatus(ctx context.Context, questID, address string) ([]int, error)
	Profile(ctx context.Context, address string) (*Profile, error)
	Sync(ctx context.Context, address string) (*SyncResult, error)
	Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) VerifyQuest(ctx context.Context, questID, address string) (*QuestResult, error) {
	start := time.Now()
	result, err := m.next.VerifyQuest(ctx, questID, address)
	attrs := []any{
		"quest", questID,
		"address", address,
		"duration", time.Since(start),
		"error", err,
	}
	if result != nil {
		attrs = append(attrs, "success", result.Success, "tier", result.Tier)
	}
	m.logger.Info("VerifyQuest", attrs...)
	return result, err
}

func (m *loggingMiddleware) VerifyStep(ctx context.Context, questID string, stepIndex int, address string) (*StepResult, error) {
	start := time.Now()
	result, err := m.next.VerifyStep(ctx, questID, stepIndex, address)
	attrs := []any{
		"quest", questID,
		"step", stepIndex,
		"address", address,
		"duration", time.Since(start),
		"error", err,
	}
	if result != nil {
		attrs = append(attrs, "success", result.Success, "tier", result.Tier, "xp", result.XPAwarded)
	}
	m.logger.Info("VerifyStep", attrs...)
	return result, err
}

func (m *loggingMiddleware) StepStatus(ctx context.Context, questID, address string) ([]int, error) {
	start := time.Now()
	steps, err := m.next.StepStatus(ctx, questID, address)
	m.logger.Debug("StepStatus",
		"quest", questID,
		"address", address,
		"count", len(steps),
		"duration", time.Since(start),
		"error", err,
	)
	return steps, err
}

func (m *loggingMiddleware) Profile(ctx context.Context, address string) (*Profile, error) {
	start := time.Now()
	profile, err := m.next.Profile(ctx, address)
	m.logger.Debug("Profile",
		"address", address,
		"duration", time.Since(start),
		"error", err,
	)
	return profile, err
}

func (m *loggingMiddleware) Sync(ctx context.Context, address string) (*SyncResult, error) {
	start := time.Now()
	result, err := m.next.Sync(ctx, address)
	attrs := []any{
		"address", address,
		"duration", time.Since(start),
		"error", err,
	}
	if result != nil {
		attrs = append(attrs, "checked", result.SyncedCount, "new", len(result.NewCompletions))
	}
	m.logger.Info("Sync", attrs...)
	return result, err
}

func (m *loggingMiddleware) Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	start := time.Now()
	entries, err := m.next.Leaderboard(ctx, limit)
	m.logger.Debug("Leaderboard",
		"limit", limit,
		"count", len(entries),
		"duration", time.Since(start),
		"error", err,
	)
	return entries, err
}
