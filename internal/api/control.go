package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/ingest"
)

// ControlHandler implements the small set of imperative operator actions:
// refresh, relay commands, and the ingest pause toggle.
type ControlHandler struct {
	pipeline *ingest.Pipeline
	bus      bus.Adapter
}

func NewControlHandler(pipeline *ingest.Pipeline, adapter bus.Adapter) *ControlHandler {
	return &ControlHandler{pipeline: pipeline, bus: adapter}
}

// Refresh implements POST /api/refresh: runs one ingest cycle immediately
// rather than waiting for the poll ticker.
func (h *ControlHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.pipeline.RunOnce(r.Context())
	WriteSuccess(w, "refresh triggered")
}

// relaySubmission is the POST /api/relay request body.
type relaySubmission struct {
	Device string `json:"device"`
	Relay  string `json:"relay"`
	State  bool   `json:"state"`
	Source string `json:"source"`
}

// Relay implements POST /api/relay: enqueues a single relay command.
func (h *ControlHandler) Relay(w http.ResponseWriter, r *http.Request) {
	var body relaySubmission
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if body.Device == "" || body.Relay == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "device and relay are required")
		return
	}
	if err := alert.DispatchRelay(r.Context(), h.bus, body.Device, body.Relay, body.State, body.Source); err != nil {
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrUpstreamFailure, "relay command failed")
		return
	}
	WriteSuccess(w, "relay command enqueued")
}

// relayClearSubmission is the POST /api/relay/clear request body.
type relayClearSubmission struct {
	Device string `json:"device"`
	Tank   int    `json:"tank"`
	Source string `json:"source"`
}

// RelayClear implements POST /api/relay/clear: enqueues a tank-scoped relay
// reset, discriminated from Relay on the wire per spec §9.
func (h *ControlHandler) RelayClear(w http.ResponseWriter, r *http.Request) {
	var body relayClearSubmission
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if body.Device == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "device is required")
		return
	}
	if err := alert.DispatchRelayReset(r.Context(), h.bus, body.Device, body.Tank, body.Source); err != nil {
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrUpstreamFailure, "relay reset failed")
		return
	}
	WriteSuccess(w, "relay reset enqueued")
}

// pauseSubmission is the POST /api/pause request body.
type pauseSubmission struct {
	Paused bool `json:"paused"`
}

// Pause implements POST /api/pause: toggles ingest processing.
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var body pauseSubmission
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	h.pipeline.Pause(body.Paused)
	WriteSuccess(w, "ingest pause updated")
}
