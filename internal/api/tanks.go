package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/fleet"
)

// TanksHandler serves the current tank table.
type TanksHandler struct {
	fleet *fleet.Store
}

func NewTanksHandler(store *fleet.Store) *TanksHandler {
	return &TanksHandler{fleet: store}
}

// List implements GET /api/tanks.
func (h *TanksHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"tanks": h.fleet.Snapshot()})
}
