package api

import (
	"encoding/json"
	"net/http"
	"time"

	"meanrev/internal/ledger"
	"meanrev/internal/state"
)

// Handler exposes a read-only view of the bot's state. Nothing here mutates
// positions or the ledger.
type Handler struct {
	store   *state.Store
	ledger  *ledger.Ledger
	runID   string
	started time.Time
}

func NewHandler(store *state.Store, led *ledger.Ledger, runID string) *Handler {
	return &Handler{
		store:   store,
		ledger:  led,
		runID:   runID,
		started: time.Now().UTC(),
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"run_id":  h.runID,
		"started": h.started,
		"uptime":  time.Since(h.started).String(),
	})
}

// GetPositions handles GET /positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Positions())
}

// GetActivity handles GET /activity
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ledger.Snapshot())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
