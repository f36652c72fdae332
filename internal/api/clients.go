package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/fleet"
	"github.com/coldbrook/fleetwatch/internal/ingest"
)

// ClientsHandler serves the device-level fleet snapshot plus a summary of
// the server-wide dispatch settings.
type ClientsHandler struct {
	fleet    *fleet.Store
	alert    *alert.Engine
	sched    *alert.Scheduler
	pipeline *ingest.Pipeline
}

func NewClientsHandler(fleetStore *fleet.Store, engine *alert.Engine, sched *alert.Scheduler, pipeline *ingest.Pipeline) *ClientsHandler {
	return &ClientsHandler{fleet: fleetStore, alert: engine, sched: sched, pipeline: pipeline}
}

// serverSettings mirrors the mutable runtime settings POST /api/server-settings changes.
type serverSettings struct {
	SMSOnHigh                  bool   `json:"smsOnHigh"`
	SMSOnLow                   bool   `json:"smsOnLow"`
	SMSOnClear                 bool   `json:"smsOnClear"`
	DailyEmailHour             int    `json:"dailyEmailHour"`
	DailyEmailMinute           int    `json:"dailyEmailMinute"`
	DailyEmailTo               string `json:"dailyEmailTo"`
	ViewerSummaryIntervalHours int    `json:"viewerSummaryIntervalHours"`
}

func (h *ClientsHandler) settings() serverSettings {
	p := h.alert.Policy()
	hour, minute, to, interval := h.sched.Settings()
	return serverSettings{
		SMSOnHigh: p.SMSOnHigh, SMSOnLow: p.SMSOnLow, SMSOnClear: p.SMSOnClear,
		DailyEmailHour: hour, DailyEmailMinute: minute, DailyEmailTo: to,
		ViewerSummaryIntervalHours: interval,
	}
}

// List implements GET /api/clients.
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"devices":       h.fleet.DeviceSnapshot(),
		"settings":      h.settings(),
		"lastTickEpoch": h.pipeline.LastTick(),
	})
}
