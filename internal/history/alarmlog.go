package history

import "sync"

const alarmLogCapacity = 500

// AlarmLogEntry is one row of the alarm-log ring (spec §3).
type AlarmLogEntry struct {
	Epoch          float64
	Site           string
	DeviceUID      string
	Tank           int
	Level          float64
	IsHigh         bool
	Cleared        bool
	ClearedEpoch   float64
}

// AlarmLog is the bounded alarm-event ring shared across the fleet.
type AlarmLog struct {
	mu   sync.Mutex
	ring *Ring[AlarmLogEntry]
}

// NewAlarmLog builds an empty AlarmLog.
func NewAlarmLog() *AlarmLog {
	return &AlarmLog{ring: NewRing[AlarmLogEntry](alarmLogCapacity)}
}

// Open appends a new, uncleared alarm entry.
func (l *AlarmLog) Open(e AlarmLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Cleared = false
	l.ring.Push(e)
}

// Clear marks the most-recent uncleared entry for (deviceUID, tank) as
// cleared at clearedEpoch. Returns whether a matching entry was found
// (spec §3: "match by deviceUid+tank, most-recent-uncleared").
func (l *AlarmLog) Clear(deviceUID string, tank int, clearedEpoch float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.MutateLast(
		func(e AlarmLogEntry) bool { return e.DeviceUID == deviceUID && e.Tank == tank && !e.Cleared },
		func(e *AlarmLogEntry) { e.Cleared = true; e.ClearedEpoch = clearedEpoch },
	)
}

// Snapshot returns a copy of the alarm log, oldest first.
func (l *AlarmLog) Snapshot() []AlarmLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Snapshot()
}
