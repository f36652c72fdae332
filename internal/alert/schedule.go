package alert

import (
	"context"
	"sync"
	"time"

	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/fleet"
)

// emailCooldownSeconds is the server-wide minimum gap between daily email
// dispatches (spec §4.7, invariant 6).
const emailCooldownSeconds = 3600

// Scheduler tracks the wall-clock state the daily email and periodic
// viewer-summary dispatches need between ingest cycles. Its internal
// dispatch-epoch bookkeeping is touched only by the ingest pipeline's
// single serial task; the dispatch-time settings (hour/minute/recipient)
// are also read there but can be updated from an HTTP handler goroutine
// via Update, so both are guarded by mu.
type Scheduler struct {
	mu sync.Mutex

	dailyEmailHour   int
	dailyEmailMinute int
	dailyEmailTo     string

	viewerSummaryIntervalHours int

	lastEmailDispatchEpoch float64
	lastViewerSummaryEpoch float64

	// nextEmailEpoch is the scheduled epoch the daily email waits for; 0
	// until first computed, and reset by Update.
	nextEmailEpoch float64
}

// NewScheduler builds a Scheduler with the given initial settings.
func NewScheduler(hour, minute int, to string, viewerIntervalHours int) *Scheduler {
	return &Scheduler{
		dailyEmailHour:             hour,
		dailyEmailMinute:           minute,
		dailyEmailTo:               to,
		viewerSummaryIntervalHours: viewerIntervalHours,
	}
}

// Update replaces the dispatch-time settings (POST /api/server-settings).
func (s *Scheduler) Update(hour, minute int, to string, viewerIntervalHours int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyEmailHour = hour
	s.dailyEmailMinute = minute
	s.dailyEmailTo = to
	s.viewerSummaryIntervalHours = viewerIntervalHours
	s.nextEmailEpoch = 0
}

// Settings returns a snapshot of the current dispatch-time settings.
func (s *Scheduler) Settings() (hour, minute int, to string, viewerIntervalHours int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyEmailHour, s.dailyEmailMinute, s.dailyEmailTo, s.viewerSummaryIntervalHours
}

// NextDailyEmailEpoch computes the next scheduled dispatch time strictly in
// the future relative to now, per spec §4.7: start-of-today (local) plus
// hour*3600+minute*60, rolled forward a day if already past.
func (s *Scheduler) NextDailyEmailEpoch(now float64) float64 {
	s.mu.Lock()
	hour, minute := s.dailyEmailHour, s.dailyEmailMinute
	s.mu.Unlock()

	t := time.Unix(int64(now), 0).Local()
	startOfDay := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	next := startOfDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	if !next.After(t) {
		next = next.Add(24 * time.Hour)
	}
	return float64(next.Unix())
}

// TankEmailSummary is one row of the daily email's tank table.
type TankEmailSummary struct {
	Device      string  `json:"device"`
	Site        string  `json:"site"`
	Label       string  `json:"label"`
	Tank        int     `json:"tank"`
	LevelInches float64 `json:"levelInches"`
	SensorMa    float64 `json:"sensorMa"`
	Alarm       bool    `json:"alarm"`
	AlarmType   string  `json:"alarmType"`
}

func summarize(r fleet.TankRecord) TankEmailSummary {
	return TankEmailSummary{
		Device:      r.DeviceUID,
		Site:        r.Site,
		Label:       r.Label,
		Tank:        r.TankNumber,
		LevelInches: r.Level,
		SensorMa:    r.SensorMa,
		Alarm:       r.AlarmActive,
		AlarmType:   r.AlarmType,
	}
}

// MaybeSendDailyEmail fires the scheduled daily email once now has reached
// the next scheduled epoch (tracked internally), subject to the
// server-wide cooldown. It returns whether an email was dispatched.
func (e *Engine) MaybeSendDailyEmail(ctx context.Context, sched *Scheduler, now float64, tanks []fleet.TankRecord) (bool, error) {
	sched.mu.Lock()
	next := sched.nextEmailEpoch
	sched.mu.Unlock()
	if next == 0 || now-next >= 86400 {
		next = sched.NextDailyEmailEpoch(now)
		sched.mu.Lock()
		sched.nextEmailEpoch = next
		sched.mu.Unlock()
	}
	if now < next {
		return false, nil
	}
	following := sched.NextDailyEmailEpoch(now)

	sched.mu.Lock()
	fire := sched.lastEmailDispatchEpoch == 0 || now-sched.lastEmailDispatchEpoch >= emailCooldownSeconds
	to := sched.dailyEmailTo
	sched.mu.Unlock()
	if !fire || to == "" {
		return false, nil
	}

	summaries := make([]TankEmailSummary, 0, len(tanks))
	for _, t := range tanks {
		summaries = append(summaries, summarize(t))
	}

	body := map[string]any{
		"to":      to,
		"subject": "Daily tank report",
		"tanks":   summaries,
	}
	if err := e.Bus.Enqueue(ctx, bus.FileEmail, body, false); err != nil {
		e.Log.Warn().Err(err).Msg("alert: daily email enqueue failed")
		return false, err
	}
	sched.mu.Lock()
	sched.lastEmailDispatchEpoch = now
	sched.nextEmailEpoch = following
	sched.mu.Unlock()
	return true, nil
}

// MaybeSendViewerSummary publishes a compact snapshot of the full tank
// table every ViewerSummaryIntervalHours, aligned to the first call.
func (e *Engine) MaybeSendViewerSummary(ctx context.Context, sched *Scheduler, now float64, tanks []fleet.TankRecord) (bool, error) {
	sched.mu.Lock()
	intervalSeconds := float64(sched.viewerSummaryIntervalHours) * 3600
	fire := sched.lastViewerSummaryEpoch == 0 || now-sched.lastViewerSummaryEpoch >= intervalSeconds
	sched.mu.Unlock()
	if intervalSeconds <= 0 {
		return false, nil
	}
	if !fire {
		return false, nil
	}

	summaries := make([]TankEmailSummary, 0, len(tanks))
	for _, t := range tanks {
		summaries = append(summaries, summarize(t))
	}
	if err := e.Bus.Enqueue(ctx, bus.FileViewerSummary, map[string]any{"tanks": summaries}, false); err != nil {
		e.Log.Warn().Err(err).Msg("alert: viewer summary enqueue failed")
		return false, err
	}
	sched.mu.Lock()
	sched.lastViewerSummaryEpoch = now
	sched.mu.Unlock()
	return true, nil
}
