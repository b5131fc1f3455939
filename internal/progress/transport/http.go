// Package transport provides HTTP handlers for the progress domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/questhub/internal/progress/domain"
	"github.com/pendergraft/questhub/internal/storage"
	"github.com/pendergraft/questhub/internal/validation"
)

// Service defines the interface for the progress service
type Service interface {
	VerifyQuest(ctx context.Context, questID, address string) (*domain.QuestResult, error)
	VerifyStep(ctx context.Context, questID string, stepIndex int, address string) (*domain.StepResult, error)
	StepStatus(ctx context.Context, questID, address string) ([]int, error)
	Profile(ctx context.Context, address string) (*domain.Profile, error)
	Sync(ctx context.Context, address string) (*domain.SyncResult, error)
	Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
}

const defaultLeaderboardLimit = 10

// Handler handles HTTP requests for user progress
type Handler struct {
	svc Service
}

// NewHandler creates a new progress HTTP handler
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterVerifyRoutes registers the routes that hit the chain.
// They are mounted behind the stricter verify rate limit.
func (h *Handler) RegisterVerifyRoutes(r chi.Router) {
	r.Post("/quests/{id}/verify", h.handleVerifyQuest)
	r.Post("/quests/{id}/steps/verify", h.handleVerifyStep)
	r.Post("/users/{address}/sync", h.handleSync)
}

// RegisterReadRoutes registers the read-only routes.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/quests/{id}/steps", h.handleStepStatus)
	r.Get("/users/{address}", h.handleProfile)
	r.Get("/leaderboard", h.handleLeaderboard)
}

// RegisterRoutes registers all progress routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	h.RegisterVerifyRoutes(r)
	h.RegisterReadRoutes(r)
}

func (h *Handler) handleVerifyQuest(w http.ResponseWriter, r *http.Request) {
	var req VerifyQuestRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Wallet address required")
		return
	}

	result, err := h.svc.VerifyQuest(r.Context(), chi.URLParam(r, "id"), req.Address)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, VerifyQuestResponse{
		Success: result.Success,
		XP:      result.XP,
		Message: result.Message,
		Error:   result.Error,
		Tier:    string(result.Tier),
	})
}

func (h *Handler) handleVerifyStep(w http.ResponseWriter, r *http.Request) {
	var req VerifyStepRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Address == "" || req.StepIndex == nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing address or stepIndex")
		return
	}

	result, err := h.svc.VerifyStep(r.Context(), chi.URLParam(r, "id"), *req.StepIndex, req.Address)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, VerifyStepResponse{
		Success:          result.Success,
		Message:          result.Message,
		Error:            result.Error,
		Tier:             string(result.Tier),
		XPAwarded:        result.XPAwarded,
		AlreadyCompleted: result.AlreadyCompleted,
		QuestCompleted:   result.QuestCompleted,
	})
}

func (h *Handler) handleStepStatus(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing address")
		return
	}

	steps, err := h.svc.StepStatus(r.Context(), chi.URLParam(r, "id"), address)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StepStatusResponse{Success: true, CompletedIndices: steps})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Profile(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		Address:         profile.Address,
		CompletedQuests: profile.CompletedQuests,
		StepCompletions: profile.StepCompletions,
		XP:              profile.XP,
		Milestones:      profile.Milestones,
	})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Sync(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Success:          true,
		Message:          result.Message,
		SyncedCount:      result.SyncedCount,
		NewCompletions:   result.NewCompletions,
		TotalCompletions: result.TotalCompletions,
	})
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a number")
			return
		}
		limit = n
	}
	limit, err := validation.ValidateLimit(limit, defaultLeaderboardLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		data[i] = LeaderboardEntry{Rank: e.Rank, Address: e.Address, XP: e.XP, Completions: e.Completions}
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Data: data, Count: len(data)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrQuestNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Quest not found")
	case errors.Is(err, domain.ErrAlreadyCompleted):
		writeError(w, http.StatusBadRequest, "ALREADY_COMPLETED", "Quest already completed")
	case errors.Is(err, domain.ErrStepNotVerifiable), errors.Is(err, domain.ErrNotOnchain):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
