package api

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/history"
)

const defaultSerialLogMax = 200

// SerialLogsHandler serves the serial-log rings (JSON + CSV export) and
// dispatches a device serial-log request.
type SerialLogsHandler struct {
	logs *history.SerialLogs
	bus  bus.Adapter
}

func NewSerialLogsHandler(logs *history.SerialLogs, adapter bus.Adapter) *SerialLogsHandler {
	return &SerialLogsHandler{logs: logs, bus: adapter}
}

// filterEntries resolves the source/client/max/since query params into the
// matching ring, applying the since cutoff and max cap.
func (h *SerialLogsHandler) filterEntries(r *http.Request) []history.SerialLogEntry {
	source, _ := QueryString(r, "source")
	client, _ := QueryString(r, "client")
	max, ok := QueryInt(r, "max")
	if !ok || max <= 0 {
		max = defaultSerialLogMax
	}
	since, hasSince := QueryEpoch(r, "since")

	var entries []history.SerialLogEntry
	if source == "client" && client != "" {
		entries = h.logs.Device(client)
	} else {
		entries = h.logs.Server()
	}

	out := make([]history.SerialLogEntry, 0, len(entries))
	for _, e := range entries {
		if hasSince && e.Epoch < since {
			continue
		}
		out = append(out, e)
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// List implements GET /api/serial-logs.
func (h *SerialLogsHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"entries": h.filterEntries(r)})
}

// Export implements GET /api/serial-export: the same entries as List, as a
// chunked CSV transfer.
func (h *SerialLogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	entries := h.filterEntries(r)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="serial-log.csv"`)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	cw := csv.NewWriter(w)
	cw.Write([]string{"epoch", "level", "source", "message"})
	for _, e := range entries {
		cw.Write([]string{
			strconv.FormatFloat(e.Epoch, 'f', 0, 64),
			string(e.Level),
			e.Source,
			e.Message,
		})
		cw.Flush()
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// serialRequestSubmission is the POST /api/serial-request request body.
type serialRequestSubmission struct {
	Device string `json:"device"`
}

// Request implements POST /api/serial-request: asks a device to send its
// serial log. Throttling (429) is applied by the RateLimiter middleware
// ahead of this handler in the route chain.
func (h *SerialLogsHandler) Request(w http.ResponseWriter, r *http.Request) {
	var body serialRequestSubmission
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if body.Device == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "device is required")
		return
	}

	if err := alert.DispatchSerialRequest(r.Context(), h.bus, body.Device, nowEpoch()); err != nil {
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrUpstreamFailure, "serial request failed")
		return
	}
	WriteSuccess(w, "serial log requested")
}
