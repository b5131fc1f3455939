// Package domain tracks user progress: quest and step completions, XP and sync.
package domain

import (
	"errors"
	"time"

	"github.com/pendergraft/questhub/internal/quests"
	verification "github.com/pendergraft/questhub/internal/verification/domain"
)

// Common errors returned by the progress service.
var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrQuestNotFound     = quests.ErrQuestNotFound
	ErrAlreadyCompleted  = errors.New("quest already completed")
	ErrStepNotVerifiable = quests.ErrStepNotVerifiable
	ErrNotOnchain        = errors.New("quest has no on-chain verification")
)

// Result messages.
const (
	MsgAllStepsDone        = "All steps completed! Quest verified."
	MsgStepsIncomplete     = "Please complete and verify all steps first."
	MsgQuestCompleted      = "Quest completed!"
	MsgManualCompleted     = "Quest completed! (Manual verification)"
	MsgStepAlreadyVerified = "Step already verified"
	MsgNothingToSync       = "No quests to sync"
)

// QuestResult is the outcome of verifying a whole quest.
type QuestResult struct {
	Success bool
	XP      int64
	Message string
	Error   string
	Tier    verification.Tier
}

// StepResult is the outcome of verifying one step.
type StepResult struct {
	Success          bool
	Message          string
	Error            string
	Tier             verification.Tier
	XPAwarded        int64
	AlreadyCompleted bool
	// QuestCompleted is set when this step finished the quest.
	QuestCompleted bool
}

// Profile summarises everything recorded for one address.
type Profile struct {
	Address         string
	CompletedQuests []string
	StepCompletions map[string][]int
	XP              int64
	Milestones      quests.Progress
}

// SyncResult reports a background re-check of on-chain quests.
type SyncResult struct {
	Message          string
	SyncedCount      int
	NewCompletions   []string
	TotalCompletions []string
}

// Options tunes Sync.
type Options struct {
	// SyncConcurrency bounds the quests verified at once.
	SyncConcurrency int
	// SyncJitter is the upper bound of the random delay before each quest is checked.
	SyncJitter time.Duration
}

// DefaultOptions returns the production sync settings.
func DefaultOptions() Options {
	return Options{
		SyncConcurrency: 4,
		SyncJitter:      500 * time.Millisecond,
	}
}
