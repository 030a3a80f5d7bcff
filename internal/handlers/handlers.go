package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"meeting-reminder-go/internal/logger"
	"meeting-reminder-go/internal/store"
)

// Ticker runs one scheduler pass on demand.
type Ticker interface {
	Tick(ctx context.Context) error
}

type Handler struct {
	Store          store.Store
	Runner         Ticker
	VAPIDPublicKey string
	Log            logger.Logger
}

func NewHandler(s store.Store, runner Ticker, vapidPublicKey string, log logger.Logger) *Handler {
	return &Handler{
		Store:          s,
		Runner:         runner,
		VAPIDPublicKey: vapidPublicKey,
		Log:            log,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Warn("failed to write response", nil)
	}
}

// writeError emits a JSON error body. Internal detail stays in the log.
func (h *Handler) writeError(w http.ResponseWriter, status int, reason string) {
	h.writeJSON(w, status, map[string]string{"error": reason})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
