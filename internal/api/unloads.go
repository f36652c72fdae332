package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/history"
)

// UnloadsHandler serves the recent unload-event log.
type UnloadsHandler struct {
	unloads *history.UnloadLog
}

func NewUnloadsHandler(unloads *history.UnloadLog) *UnloadsHandler {
	return &UnloadsHandler{unloads: unloads}
}

// List implements GET /api/unloads.
func (h *UnloadsHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"unloads": h.unloads.Snapshot()})
}
