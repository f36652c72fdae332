package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coldbrook/fleetwatch/internal/history"
)

// HistoryHandler serves the hot-tier trend views and the warm-tier
// month-over-month / year-over-year comparisons (spec §6).
type HistoryHandler struct {
	history *history.Store
}

func NewHistoryHandler(h *history.Store) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// Trends implements GET /api/history: hot-tier trends plus recent alarms.
func (h *HistoryHandler) Trends(w http.ResponseWriter, r *http.Request) {
	device, hasDevice := QueryString(r, "device")
	tank, hasTank := QueryInt(r, "tank")

	resp := map[string]any{
		"alarms": h.history.AlarmLog.Snapshot(),
	}
	if hasDevice && hasTank {
		resp["series"] = h.history.Hourly.Series(device, tank)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// parsePeriod validates a YYYYMM period string.
func parsePeriod(s string) (string, bool) {
	if len(s) != 6 {
		return "", false
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "", false
	}
	return s, true
}

// Compare implements GET /api/history/compare?current=YYYYMM&previous=YYYYMM.
// Per spec §9's open question on archive layout, this implementation
// sources both periods from the warm-tier rollup table, keyed by the
// plain YYYYMM string.
func (h *HistoryHandler) Compare(w http.ResponseWriter, r *http.Request) {
	current, ok := QueryString(r, "current")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "current is required")
		return
	}
	previous, ok := QueryString(r, "previous")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "previous is required")
		return
	}
	if _, ok := parsePeriod(current); !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "current must be YYYYMM")
		return
	}
	if _, ok := parsePeriod(previous); !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "previous must be YYYYMM")
		return
	}

	if h.history.Warm == nil {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrInternal, "warm tier not configured")
		return
	}

	ctx := r.Context()
	currentRows, err := h.history.Warm.LoadRollups(ctx, current)
	if err != nil {
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to load current period")
		return
	}
	previousRows, err := h.history.Warm.LoadRollups(ctx, previous)
	if err != nil {
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to load previous period")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"current":  currentRows,
		"previous": previousRows,
	})
}

// YoY implements GET /api/history/yoy?tank=<uid>:<n>&years=N.
func (h *HistoryHandler) YoY(w http.ResponseWriter, r *http.Request) {
	tankParam, ok := QueryString(r, "tank")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "tank is required")
		return
	}
	device, tank, ok := splitTankParam(tankParam)
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "tank must be <uid>:<n>")
		return
	}
	years, ok := QueryInt(r, "years")
	if !ok || years <= 0 {
		years = 1
	}

	if h.history.Warm == nil {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrInternal, "warm tier not configured")
		return
	}

	ctx := r.Context()
	type yearStats struct {
		Year string           `json:"year"`
		Rows []history.Rollup `json:"rows"`
	}
	currentYear := time.Now().Year()
	out := make([]yearStats, 0, years)
	for i := 0; i < years; i++ {
		year := currentYear - i
		rows, err := loadYearRollups(ctx, h.history, device, tank, year)
		if err != nil {
			WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "failed to load rollups")
			return
		}
		out = append(out, yearStats{Year: strconv.Itoa(year), Rows: rows})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tank": tankParam, "years": out})
}

// loadYearRollups pulls each month's rollup rows for a single calendar
// year and filters down to one tank.
func loadYearRollups(ctx context.Context, store *history.Store, device string, tank, year int) ([]history.Rollup, error) {
	var out []history.Rollup
	for month := 1; month <= 12; month++ {
		period := fmt.Sprintf("%04d%02d", year, month)
		rows, err := store.Warm.LoadRollups(ctx, period)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.DeviceUID == device && row.TankNumber == tank {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func splitTankParam(v string) (device string, tank int, ok bool) {
	idx := strings.LastIndex(v, ":")
	if idx < 0 {
		return "", 0, false
	}
	device = v[:idx]
	n, err := strconv.Atoi(v[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return device, n, true
}
