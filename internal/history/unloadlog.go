package history

import "sync"

const unloadLogCapacity = 200

// UnloadLogEntry is one row of the unload-event ring (spec §3).
type UnloadLogEntry struct {
	EventEpoch  float64
	PeakEpoch   float64
	Site        string
	DeviceUID   string
	TankLabel   string
	TankNumber  int
	PeakLevel   float64
	EmptyLevel  float64
	PeakSensorMa  float64
	EmptySensorMa float64
	SMSSent     bool
	EmailQueued bool
}

// UnloadLog is the bounded unload-event ring shared across the fleet.
type UnloadLog struct {
	mu   sync.Mutex
	ring *Ring[UnloadLogEntry]
}

// NewUnloadLog builds an empty UnloadLog.
func NewUnloadLog() *UnloadLog {
	return &UnloadLog{ring: NewRing[UnloadLogEntry](unloadLogCapacity)}
}

// Append records a new unload event.
func (l *UnloadLog) Append(e UnloadLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring.Push(e)
}

// Snapshot returns a copy of the unload log, oldest first.
func (l *UnloadLog) Snapshot() []UnloadLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Snapshot()
}
