// Package ingest implements the ingest pipeline (component 6): a poll loop
// that drains each inbound notefile in a fixed order and dispatches
// decoded bodies to typed handlers.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/calib"
	"github.com/coldbrook/fleetwatch/internal/clock"
	"github.com/coldbrook/fleetwatch/internal/fleet"
	"github.com/coldbrook/fleetwatch/internal/history"
)

// maxNotesPerFilePerPass bounds a single poll of one notefile, preventing
// one busy queue from starving the others (spec §4.6).
const maxNotesPerFilePerPass = 10

// minPollCadence is the floor on how often RunOnce may be invoked in a
// loop (spec §4.6: "at cadence >= 5s").
const minPollCadence = 5 * time.Second

// Pipeline owns every collaborator the ingest handlers touch. It is meant
// to run on a single goroutine (the "serial task" of spec §5); nothing
// here is safe to call concurrently from two goroutines at once, though
// its collaborators (fleet.Store, calib.Store, history.Store) are each
// independently lock-guarded for the HTTP read side.
type Pipeline struct {
	Bus      bus.Adapter
	Clock    *clock.Clock
	Fleet    *fleet.Store
	Calib    *calib.Store
	Config   *ConfigCache
	History  *history.Store
	Alert    *alert.Engine
	Sched    *alert.Scheduler
	Contacts *alert.ContactsStore

	Log zerolog.Logger

	paused        atomic.Bool
	lastTickEpoch atomic.Int64
}

// Pause toggles ingest processing on/off (POST /api/pause); the poll loop
// keeps running but skips draining when paused.
func (p *Pipeline) Pause(v bool) { p.paused.Store(v) }

// Paused reports the current pause state.
func (p *Pipeline) Paused() bool { return p.paused.Load() }

// LastTick reports the epoch of the most recent RunOnce pass (the serial
// task's liveness tick, spec §5's watchdog contract), or 0 if RunOnce has
// never run. Surfaced on GET /api/clients as an observable stand-in for
// the host watchdog plumbing itself, which is out of scope.
func (p *Pipeline) LastTick() float64 { return float64(p.lastTickEpoch.Load()) }

// Run drives the poll loop at minPollCadence until ctx is canceled.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(minPollCadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce drains every inbound notefile once, in the fixed order, and runs
// the scheduled alert/maintenance passes. Safe to call directly (e.g. from
// POST /api/refresh) as well as from Run's ticker.
func (p *Pipeline) RunOnce(ctx context.Context) {
	p.Clock.MaybeResync(busTimeSource{p.Bus})
	p.lastTickEpoch.Store(int64(p.Clock.Now()))

	if !p.Paused() {
		for _, fileName := range bus.InboundFiles {
			p.drainOne(ctx, fileName)
		}
	}

	now := p.Clock.Now()
	tanks := p.Fleet.Snapshot()
	if _, err := p.Alert.MaybeSendDailyEmail(ctx, p.Sched, now, tanks); err != nil {
		p.Log.Warn().Err(err).Msg("ingest: daily email dispatch failed")
	}
	if _, err := p.Alert.MaybeSendViewerSummary(ctx, p.Sched, now, tanks); err != nil {
		p.Log.Warn().Err(err).Msg("ingest: viewer summary dispatch failed")
	}
	if err := p.History.Maintain(ctx, now, nil); err != nil {
		p.Log.Warn().Err(err).Msg("ingest: history maintenance failed")
	}
}

func (p *Pipeline) drainOne(ctx context.Context, fileName string) {
	notes, err := p.Bus.Drain(ctx, fileName, maxNotesPerFilePerPass)
	if err != nil {
		p.Log.Warn().Err(err).Str("file", fileName).Msg("ingest: drain failed, will retry next cycle")
		return
	}
	handler, ok := Route(fileName)
	if !ok {
		return
	}
	for _, note := range notes {
		p.dispatch(ctx, handler, note)
	}
}

func (p *Pipeline) dispatch(ctx context.Context, handler HandlerName, note bus.Note) {
	defer func() {
		if r := recover(); r != nil {
			p.Log.Error().Interface("panic", r).Str("handler", string(handler)).Msg("ingest: handler panicked, dropping note")
		}
	}()

	switch handler {
	case HandlerTelemetry:
		p.handleTelemetry(ctx, note)
	case HandlerAlarm:
		p.handleAlarm(ctx, note)
	case HandlerDaily:
		p.handleDaily(ctx, note)
	case HandlerUnload:
		p.handleUnload(ctx, note)
	case HandlerSerialLog:
		p.handleSerialLog(ctx, note)
	case HandlerSerialAck:
		p.handleSerialAck(ctx, note)
	}
}

// busTimeSource adapts bus.Adapter to clock.TimeSource.
type busTimeSource struct{ b bus.Adapter }

func (s busTimeSource) CurrentTime() (float64, bool) { return s.b.CurrentTime() }
