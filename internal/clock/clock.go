// Package clock provides the server's reconciled epoch clock (component 1).
//
// The server has no reliable wall clock of its own at boot — it trusts the
// bus to report the current time, the same way a field device trusts its
// modem sidecar. Clock holds the last (epoch, monotonic) pair the bus gave
// it and extrapolates forward using the monotonic clock between syncs.
package clock

import (
	"sync"
	"time"
)

// maxSyncAge is how long a sync is trusted before a resync is requested.
const maxSyncAge = 6 * time.Hour

// TimeSource asks an external collaborator (the bus adapter) for the
// current wall-clock time. Returns ok=false if unavailable.
type TimeSource interface {
	CurrentTime() (epoch float64, ok bool)
}

// Clock tracks a reconciled wall-clock epoch against the monotonic clock.
type Clock struct {
	mu              sync.Mutex
	syncedEpoch     float64
	syncedMonotonic time.Time
	synced          bool
}

// New creates an unsynced Clock. Now() returns 0 until the first sync.
func New() *Clock {
	return &Clock{}
}

// Now returns the current reconciled epoch in seconds, or 0 if never synced.
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		return 0
	}
	elapsed := time.Since(c.syncedMonotonic)
	return c.syncedEpoch + elapsed.Seconds()
}

// Synced reports whether the clock has ever been synchronized.
func (c *Clock) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// NeedsSync reports whether the clock has never synced, or the last sync
// is older than maxSyncAge.
func (c *Clock) NeedsSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		return true
	}
	return time.Since(c.syncedMonotonic) > maxSyncAge
}

// Sync records a fresh (epoch, now) pair from the bus.
func (c *Clock) Sync(epoch float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncedEpoch = epoch
	c.syncedMonotonic = time.Now()
	c.synced = true
}

// MaybeResync asks src for the current time if a resync is due, and applies
// it on success. Call once per ingest cycle.
func (c *Clock) MaybeResync(src TimeSource) {
	if !c.NeedsSync() {
		return
	}
	if epoch, ok := src.CurrentTime(); ok {
		c.Sync(epoch)
	}
}
