// Package transport provides HTTP handlers for the verification domain.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/questhub/internal/validation"
	"github.com/pendergraft/questhub/internal/verification/domain"
)

// Verifier runs a single verification config against a chain.
type Verifier interface {
	Verify(ctx context.Context, cfg domain.Config, address, label string) domain.Result
}

// Handler handles HTTP requests for ad-hoc verification.
type Handler struct {
	verifier Verifier
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(verifier Verifier) *Handler {
	return &Handler{verifier: verifier}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req VerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}
	if err := validation.ValidateAddress(req.Address); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err := validation.ValidateChainID(req.Config.ChainID); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	label := req.Label
	if label == "" {
		label = "adhoc"
	}
	result := h.verifier.Verify(r.Context(), req.Config, req.Address, label)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, VerifyResponse{
		Success: result.Success,
		Message: result.Message,
		Error:   result.Error,
		Tier:    string(result.Tier),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
