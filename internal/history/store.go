package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const pruneMinIntervalSeconds = 86400 // at most once per day (spec §4.8)
const warmRollupIntervalSeconds = 3600 // hourly rollup persistence cadence

// Store bundles every tier of the history subsystem. Hourly/AlarmLog/
// UnloadLog/SerialLogs are always present (hot tier); Warm and Cold are
// optional depending on configuration.
type Store struct {
	Hourly    *HourlyStore
	AlarmLog  *AlarmLog
	UnloadLog *UnloadLog
	SerialLogs *SerialLogs

	Warm *WarmStore
	Cold *ColdArchive

	rollupWriter *WarmRollupWriter

	hotTierRetentionDays int
	lastPruneEpoch       float64
	lastArchivedMonth    string
	lastWarmRollupEpoch  float64

	log zerolog.Logger
}

// NewStore builds a Store. warm and cold may be nil if those tiers are
// disabled by configuration.
func NewStore(hotTierRetentionDays int, warm *WarmStore, cold *ColdArchive, log zerolog.Logger) *Store {
	var rollupWriter *WarmRollupWriter
	if warm != nil {
		rollupWriter = NewWarmRollupWriter(warm, log)
	}
	return &Store{
		Hourly:               NewHourlyStore(),
		AlarmLog:             NewAlarmLog(),
		UnloadLog:            NewUnloadLog(),
		SerialLogs:           NewSerialLogs(),
		Warm:                 warm,
		Cold:                 cold,
		rollupWriter:         rollupWriter,
		hotTierRetentionDays: hotTierRetentionDays,
		log:                  log,
	}
}

// Maintain runs the periodic prune/warm-rollup/archive pass (spec
// §4.8). Call at a cadence of at least once per hour; tick is the
// liveness-tick callback invoked between archive uploads so a host
// watchdog sees progress (spec §5: "long operations ... must tick
// between files").
func (s *Store) Maintain(ctx context.Context, now float64, tick func()) error {
	s.maybePrune(now)
	s.maybeWarmRollup(now)
	return s.maybeArchive(ctx, now, tick)
}

// maybeWarmRollup computes the just-elapsed hour's per-tank stats and
// queues them on the warm rollup writer, feeding /api/history/compare
// and /api/history/yoy without recomputing from the hot ring on every
// request. No-op if warm persistence is disabled.
func (s *Store) maybeWarmRollup(now float64) {
	if s.rollupWriter == nil {
		return
	}
	if s.lastWarmRollupEpoch != 0 && now-s.lastWarmRollupEpoch < warmRollupIntervalSeconds {
		return
	}

	hourStart := float64(int64(now/3600) * 3600)
	period := time.Unix(int64(hourStart), 0).UTC().Format("2006-01-02T15")
	stats := s.Hourly.SummarizeRange(hourStart-3600, hourStart)
	if len(stats) > 0 {
		s.rollupWriter.Add(period, stats)
	}
	s.lastWarmRollupEpoch = now
}

// Close stops the warm rollup writer, flushing any pending rows before
// the caller closes the underlying pool. Safe to call even when warm
// persistence is disabled.
func (s *Store) Close() {
	if s.rollupWriter != nil {
		s.rollupWriter.Stop()
	}
}

func (s *Store) maybePrune(now float64) {
	if s.lastPruneEpoch != 0 && now-s.lastPruneEpoch < pruneMinIntervalSeconds {
		return
	}
	cutoff := now - float64(s.hotTierRetentionDays)*86400
	s.Hourly.Prune(cutoff)
	s.lastPruneEpoch = now
}

func (s *Store) maybeArchive(ctx context.Context, now float64, tick func()) error {
	if s.Cold == nil {
		return nil
	}

	t := time.Unix(int64(now), 0).UTC()
	prevMonth := t.AddDate(0, -1, 0)
	yyyymm := fmt.Sprintf("%04d%02d", prevMonth.Year(), prevMonth.Month())
	if yyyymm == s.lastArchivedMonth {
		return nil
	}

	start := time.Date(prevMonth.Year(), prevMonth.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	stats := s.Hourly.SummarizeRange(float64(start.Unix()), float64(end.Unix()))
	if tick != nil {
		tick()
	}

	doc := MonthlyDocument{
		Period: yyyymm,
		Tanks:  stats,
		Alarms: s.AlarmLog.Snapshot(),
	}
	if err := s.Cold.Upload(ctx, yyyymm, doc); err != nil {
		s.log.Warn().Err(err).Str("period", yyyymm).Msg("history: monthly archive upload failed")
		return err
	}
	if tick != nil {
		tick()
	}

	s.lastArchivedMonth = yyyymm
	return nil
}
