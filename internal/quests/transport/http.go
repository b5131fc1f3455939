// Package transport provides HTTP handlers for the quest catalogue.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/questhub/internal/quests"
)

// Catalogue defines the read-only quest catalogue used by the handlers.
type Catalogue interface {
	Get(id string) (quests.Quest, error)
	List(f quests.Filter) []quests.Quest
	Milestones() []quests.Milestone
}

// Handler handles HTTP requests for quests and milestones.
type Handler struct {
	catalogue Catalogue
}

// NewHandler creates a new quests HTTP handler.
func NewHandler(catalogue Catalogue) *Handler {
	return &Handler{catalogue: catalogue}
}

// RegisterRoutes registers the catalogue routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/quests", h.handleList)
	r.Get("/quests/{id}", h.handleGet)
	r.Get("/milestones", h.handleMilestones)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list := h.catalogue.List(quests.Filter{
		Category:      quests.Category(q.Get("category")),
		Status:        quests.Status(q.Get("status")),
		IncludeHidden: q.Get("includeHidden") == "true",
	})
	writeJSON(w, http.StatusOK, ListResponse{Data: list, Count: len(list)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	quest, err := h.catalogue.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, quests.ErrQuestNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Quest not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load quest")
		return
	}
	writeJSON(w, http.StatusOK, quest)
}

func (h *Handler) handleMilestones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MilestonesResponse{Data: h.catalogue.Milestones()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
