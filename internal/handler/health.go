package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/capitalize-ai/chatshare/internal/storage"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store  storage.Store
	events storage.Pinger
}

// NewHealthHandler creates a new health handler. events may be nil when
// event publishing is disabled.
func NewHealthHandler(store storage.Store, events storage.Pinger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		events: events,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := storage.Ping(ctx, h.store); err != nil {
		writeNotReady(w, "store unavailable")
		return
	}
	if h.events != nil {
		if err := h.events.Ping(ctx); err != nil {
			writeNotReady(w, "event stream unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func writeNotReady(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status": "not ready",
		"reason": reason,
	})
}
