package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/alert"
)

// ServerSettingsHandler implements POST /api/server-settings, updating the
// SMS dispatch policy and daily-email/viewer-summary schedule that the
// ingest pipeline reads on every cycle.
type ServerSettingsHandler struct {
	alert *alert.Engine
	sched *alert.Scheduler
}

func NewServerSettingsHandler(engine *alert.Engine, sched *alert.Scheduler) *ServerSettingsHandler {
	return &ServerSettingsHandler{alert: engine, sched: sched}
}

// Update implements POST /api/server-settings.
func (h *ServerSettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body serverSettings
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if body.DailyEmailHour < 0 || body.DailyEmailHour > 23 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "dailyEmailHour must be 0-23")
		return
	}
	if body.DailyEmailMinute < 0 || body.DailyEmailMinute > 59 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "dailyEmailMinute must be 0-59")
		return
	}
	if body.ViewerSummaryIntervalHours < 0 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "viewerSummaryIntervalHours must be >= 0")
		return
	}

	h.alert.SetPolicy(alert.Policy{
		SMSOnHigh:  body.SMSOnHigh,
		SMSOnLow:   body.SMSOnLow,
		SMSOnClear: body.SMSOnClear,
	})
	h.sched.Update(body.DailyEmailHour, body.DailyEmailMinute, body.DailyEmailTo, body.ViewerSummaryIntervalHours)

	WriteSuccess(w, "server settings updated")
}
