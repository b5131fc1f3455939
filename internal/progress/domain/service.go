package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pendergraft/questhub/internal/observability/metrics"
	"github.com/pendergraft/questhub/internal/quests"
	"github.com/pendergraft/questhub/internal/storage"
	"github.com/pendergraft/questhub/internal/validation"
	verification "github.com/pendergraft/questhub/internal/verification/domain"
)

// Verifier runs a single verification config against the chain.
type Verifier interface {
	Verify(ctx context.Context, cfg verification.Config, address, label string) verification.Result
}

// Catalogue is the read side of the quest registry used here.
type Catalogue interface {
	Get(id string) (quests.Quest, error)
	All() []quests.Quest
	MilestoneProgress(xp int64) quests.Progress
}

// ProgressStore defines the storage operations needed by the progress domain.
type ProgressStore interface {
	GetCompletion(ctx context.Context, questID, address string) (bool, error)
	GetStepCompletion(ctx context.Context, questID string, step int, address string) (bool, error)
	GetUserCompletions(ctx context.Context, address string) ([]string, error)
	GetUserStepCompletions(ctx context.Context, questID, address string) ([]int, error)
	GetAllUserStepCompletions(ctx context.Context, address string) (map[string][]int, error)
	CompleteQuest(ctx context.Context, questID, address string, xp int64) (bool, error)
	CompleteStep(ctx context.Context, questID string, step int, address string, xp int64) (bool, error)
	GetUserXP(ctx context.Context, address string) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
}

type service struct {
	catalogue Catalogue
	store     ProgressStore
	verifier  Verifier
	opts      Options
	logger    *slog.Logger
}

// NewService creates a new progress service.
func NewService(catalogue Catalogue, store ProgressStore, verifier Verifier, opts Options, logger *slog.Logger) *service {
	if opts.SyncConcurrency <= 0 {
		opts.SyncConcurrency = DefaultOptions().SyncConcurrency
	}
	return &service{
		catalogue: catalogue,
		store:     store,
		verifier:  verifier,
		opts:      opts,
		logger:    logger,
	}
}

func normalize(address string) (string, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return validation.NormalizeAddress(address), nil
}

// VerifyQuest verifies a whole quest for address and records it on success.
// A failed verification is reported in the result, not as an error.
func (s *service) VerifyQuest(ctx context.Context, questID, address string) (*QuestResult, error) {
	addr, err := normalize(address)
	if err != nil {
		return nil, err
	}
	q, err := s.catalogue.Get(questID)
	if err != nil {
		return nil, err
	}

	done, err := s.store.GetCompletion(ctx, q.ID, addr)
	if err != nil {
		return nil, fmt.Errorf("checking completion: %w", err)
	}
	if done {
		return nil, ErrAlreadyCompleted
	}

	// Steps already paid their share of the XP.
	if q.IsMultiStep() {
		all, err := s.allStepsDone(ctx, q, addr)
		if err != nil {
			return nil, err
		}
		if !all {
			return &QuestResult{Error: MsgStepsIncomplete}, nil
		}
		if _, err := s.complete(ctx, q.ID, addr, 0); err != nil {
			return nil, err
		}
		return &QuestResult{Success: true, XP: q.XP, Message: MsgAllStepsDone}, nil
	}

	var result *QuestResult
	switch {
	case q.HasOnchainVerification():
		result, err = s.VerifyQuestOnChain(ctx, q.ID, addr)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return result, nil
		}
	case q.HasTopLevelVerification():
		result = &QuestResult{Success: true, XP: q.XP, Message: MsgManualCompleted, Tier: verification.TierManual}
	default:
		result = &QuestResult{Success: true, XP: q.XP, Message: MsgQuestCompleted}
	}

	created, err := s.complete(ctx, q.ID, addr, q.XP)
	if err != nil {
		return nil, err
	}
	if !created {
		// a concurrent request recorded it first
		return nil, ErrAlreadyCompleted
	}
	return result, nil
}

// VerifyQuestOnChain tries every on-chain config of the quest in order and
// returns the first success with the quest XP attached. Nothing is recorded.
func (s *service) VerifyQuestOnChain(ctx context.Context, questID, address string) (*QuestResult, error) {
	q, err := s.catalogue.Get(questID)
	if err != nil {
		return nil, err
	}
	configs := q.OnchainConfigs()
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotOnchain, q.ID)
	}

	var last verification.Result
	for _, cfg := range configs {
		last = s.verifier.Verify(ctx, cfg, address, q.Title)
		if last.Success {
			return &QuestResult{Success: true, XP: q.XP, Message: last.Message, Tier: last.Tier}, nil
		}
	}
	return &QuestResult{Error: last.Error, Tier: last.Tier}, nil
}

// VerifyStep verifies one step for address and credits the step XP on success.
// Finishing the last verifiable step completes the quest without extra XP.
func (s *service) VerifyStep(ctx context.Context, questID string, stepIndex int, address string) (*StepResult, error) {
	addr, err := normalize(address)
	if err != nil {
		return nil, err
	}
	q, _, err := s.lookupStep(questID, stepIndex)
	if err != nil {
		return nil, err
	}

	done, err := s.store.GetStepCompletion(ctx, q.ID, stepIndex, addr)
	if err != nil {
		return nil, fmt.Errorf("checking step completion: %w", err)
	}
	if done {
		return &StepResult{Success: true, Message: MsgStepAlreadyVerified, AlreadyCompleted: true}, nil
	}

	result, err := s.VerifyStepOnChain(ctx, q.ID, stepIndex, addr)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, nil
	}

	xp := q.StepXP()
	created, err := s.store.CompleteStep(ctx, q.ID, stepIndex, addr, xp)
	if err != nil {
		return nil, fmt.Errorf("recording step: %w", err)
	}
	if !created {
		return &StepResult{Success: true, Message: MsgStepAlreadyVerified, AlreadyCompleted: true}, nil
	}
	metrics.StepCompleted(q.ID)
	metrics.XPAwarded(xp)
	result.XPAwarded = xp

	all, err := s.allStepsDone(ctx, q, addr)
	if err != nil {
		return nil, err
	}
	if all && !q.HasTopLevelVerification() {
		created, err := s.complete(ctx, q.ID, addr, 0)
		if err != nil {
			return nil, err
		}
		result.QuestCompleted = created
	}
	return result, nil
}

// VerifyStepOnChain runs the verification of one step without recording anything.
func (s *service) VerifyStepOnChain(ctx context.Context, questID string, stepIndex int, address string) (*StepResult, error) {
	q, step, err := s.lookupStep(questID, stepIndex)
	if err != nil {
		return nil, err
	}
	res := s.verifier.Verify(ctx, *step.Verification, address, quests.StepLabel(q.ID, stepIndex))
	return &StepResult{Success: res.Success, Message: res.Message, Error: res.Error, Tier: res.Tier}, nil
}

func (s *service) lookupStep(questID string, stepIndex int) (quests.Quest, quests.Step, error) {
	q, err := s.catalogue.Get(questID)
	if err != nil {
		return quests.Quest{}, quests.Step{}, err
	}
	step, err := q.Step(stepIndex)
	if err != nil {
		return quests.Quest{}, quests.Step{}, fmt.Errorf("%w: %v", ErrStepNotVerifiable, err)
	}
	if step.Verification == nil {
		return quests.Quest{}, quests.Step{}, fmt.Errorf("%w: quest %s step %d", ErrStepNotVerifiable, q.ID, stepIndex)
	}
	return q, step, nil
}

// StepStatus returns the completed step indices of a quest.
func (s *service) StepStatus(ctx context.Context, questID, address string) ([]int, error) {
	addr, err := normalize(address)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalogue.Get(questID); err != nil {
		return nil, err
	}
	return s.store.GetUserStepCompletions(ctx, questID, addr)
}

// Profile returns the completions, XP and milestone progress of address.
func (s *service) Profile(ctx context.Context, address string) (*Profile, error) {
	addr, err := normalize(address)
	if err != nil {
		return nil, err
	}

	completed, err := s.store.GetUserCompletions(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}
	steps, err := s.store.GetAllUserStepCompletions(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("listing step completions: %w", err)
	}
	xp, err := s.store.GetUserXP(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("reading xp: %w", err)
	}

	return &Profile{
		Address:         addr,
		CompletedQuests: completed,
		StepCompletions: steps,
		XP:              xp,
		Milestones:      s.catalogue.MilestoneProgress(xp),
	}, nil
}

// Sync re-checks every active on-chain quest address has not completed yet
// and records the ones that now verify.
func (s *service) Sync(ctx context.Context, address string) (*SyncResult, error) {
	addr, err := normalize(address)
	if err != nil {
		return nil, err
	}

	completed, err := s.store.GetUserCompletions(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}

	var pending []quests.Quest
	for _, q := range s.catalogue.All() {
		if q.Status == quests.StatusActive && q.HasOnchainVerification() && !slices.Contains(completed, q.ID) {
			pending = append(pending, q)
		}
	}
	if len(pending) == 0 {
		return &SyncResult{Message: MsgNothingToSync, NewCompletions: []string{}, TotalCompletions: completed}, nil
	}

	s.logger.Info("syncing quests", "address", addr, "count", len(pending))
	metrics.SyncChecked(len(pending))

	var (
		mu       sync.Mutex
		verified []quests.Quest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SyncConcurrency)
	for _, q := range pending {
		g.Go(func() error {
			if err := s.jitter(gctx); err != nil {
				return err
			}
			res, err := s.VerifyQuestOnChain(gctx, q.ID, addr)
			if err != nil {
				s.logger.Warn("sync verification failed", "quest", q.ID, "address", addr, "error", err)
				return nil
			}
			if res.Success {
				mu.Lock()
				verified = append(verified, q)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	newCompletions := []string{}
	for _, q := range verified {
		created, err := s.complete(ctx, q.ID, addr, q.XP)
		if err != nil {
			return nil, err
		}
		if created {
			newCompletions = append(newCompletions, q.ID)
		}
	}
	slices.Sort(newCompletions)

	total, err := s.store.GetUserCompletions(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}
	return &SyncResult{
		SyncedCount:      len(pending),
		NewCompletions:   newCompletions,
		TotalCompletions: total,
	}, nil
}

func (s *service) jitter(ctx context.Context) error {
	if err := ctx.Err(); err != nil || s.opts.SyncJitter <= 0 {
		return err
	}
	t := time.NewTimer(rand.N(s.opts.SyncJitter))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Leaderboard returns the top addresses by XP.
func (s *service) Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	return s.store.Leaderboard(ctx, limit)
}

// complete records the quest and credits xp, reporting whether it was new.
func (s *service) complete(ctx context.Context, questID, addr string, xp int64) (bool, error) {
	created, err := s.store.CompleteQuest(ctx, questID, addr, xp)
	if err != nil {
		return false, fmt.Errorf("recording completion: %w", err)
	}
	if created {
		metrics.QuestCompleted(questID)
		metrics.XPAwarded(xp)
	}
	return created, nil
}

func (s *service) allStepsDone(ctx context.Context, q quests.Quest, addr string) (bool, error) {
	done, err := s.store.GetUserStepCompletions(ctx, q.ID, addr)
	if err != nil {
		return false, fmt.Errorf("listing step completions: %w", err)
	}
	for _, idx := range q.VerifiableSteps() {
		if !slices.Contains(done, idx) {
			return false, nil
		}
	}
	return true, nil
}
