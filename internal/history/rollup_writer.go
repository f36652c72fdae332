package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// rollupBatchMaxSize bounds how many per-tank rows accumulate before a
// flush fires regardless of the time threshold — enough for a
// large fleet's hourly pass to land in one transaction.
const rollupBatchMaxSize = 64

// rollupBatchInterval is the time threshold: a partial batch flushes
// at least this often even if rollupBatchMaxSize is never reached.
const rollupBatchInterval = 10 * time.Second

type rollupItem struct {
	period string
	stats  MonthlyStats
}

// WarmRollupWriter batches per-tank MonthlyStats rows bound for
// WarmStore.SaveRollup, so a maintenance pass across many tanks issues
// a handful of batched transactions instead of one INSERT per tank.
type WarmRollupWriter struct {
	warm    *WarmStore
	log     zerolog.Logger
	batcher *Batcher[rollupItem]
}

// NewWarmRollupWriter builds a writer bound to warm. warm must be non-nil.
func NewWarmRollupWriter(warm *WarmStore, log zerolog.Logger) *WarmRollupWriter {
	w := &WarmRollupWriter{warm: warm, log: log}
	w.batcher = NewBatcher[rollupItem](rollupBatchMaxSize, rollupBatchInterval, w.flush)
	return w
}

// Add queues one period's per-tank stats for batched persistence.
func (w *WarmRollupWriter) Add(period string, stats []MonthlyStats) {
	for _, s := range stats {
		w.batcher.Add(rollupItem{period: period, stats: s})
	}
}

// Stop flushes any pending rows and blocks until they're written.
func (w *WarmRollupWriter) Stop() {
	w.batcher.Stop()
}

// flush is the Batcher's flushFn: it regroups by period (a batch may
// span a period rollover) and issues one SaveRollup call per group.
func (w *WarmRollupWriter) flush(items []rollupItem) {
	byPeriod := make(map[string][]MonthlyStats)
	for _, it := range items {
		byPeriod[it.period] = append(byPeriod[it.period], it.stats)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for period, stats := range byPeriod {
		if err := w.warm.SaveRollup(ctx, period, stats); err != nil {
			w.log.Warn().Err(err).Str("period", period).Int("tanks", len(stats)).Msg("history: warm rollup flush failed")
		}
	}
}
