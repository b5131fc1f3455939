package transport

import (
	"github.com/pendergraft/questhub/internal/quests"
)

// VerifyQuestRequest is the body of POST /quests/{id}/verify
type VerifyQuestRequest struct {
	Address string `json:"address"`
}

// VerifyQuestResponse reports a quest verification
type VerifyQuestResponse struct {
	Success bool   `json:"success"`
	XP      int64  `json:"xp,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// VerifyStepRequest is the body of POST /quests/{id}/steps/verify
type VerifyStepRequest struct {
	Address   string `json:"address"`
	StepIndex *int   `json:"stepIndex"`
}

// VerifyStepResponse reports a step verification
type VerifyStepResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	Tier             string `json:"tier,omitempty"`
	XPAwarded        int64  `json:"xpAwarded"`
	AlreadyCompleted bool   `json:"alreadyCompleted,omitempty"`
	QuestCompleted   bool   `json:"questCompleted,omitempty"`
}

// StepStatusResponse lists the completed steps of a quest
type StepStatusResponse struct {
	Success          bool  `json:"success"`
	CompletedIndices []int `json:"completedIndices"`
}

// ProfileResponse is a user's progress
type ProfileResponse struct {
	Address         string           `json:"address"`
	CompletedQuests []string         `json:"completedQuests"`
	StepCompletions map[string][]int `json:"stepCompletions"`
	XP              int64            `json:"xp"`
	Milestones      quests.Progress  `json:"milestones"`
}

// SyncResponse reports a sync run
type SyncResponse struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message,omitempty"`
	SyncedCount      int      `json:"syncedCount"`
	NewCompletions   []string `json:"newCompletions"`
	TotalCompletions []string `json:"totalCompletions"`
}

// LeaderboardEntry is one row of the leaderboard
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Address     string `json:"address"`
	XP          int64  `json:"xp"`
	Completions int    `json:"completions"`
}

// LeaderboardResponse wraps the leaderboard
type LeaderboardResponse struct {
	Data  []LeaderboardEntry `json:"data"`
	Count int                `json:"count"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
