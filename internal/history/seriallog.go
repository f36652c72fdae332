package history

import "sync"

const serialRingCapacity = 300

// SerialLevel is the severity of a serial-log entry.
type SerialLevel string

const (
	SerialInfo  SerialLevel = "info"
	SerialWarn  SerialLevel = "warn"
	SerialError SerialLevel = "error"
)

// SerialLogEntry is one row of a serial-log ring (spec §3).
type SerialLogEntry struct {
	Epoch   float64
	Message string
	Level   SerialLevel
	Source  string
}

// SerialLogs holds one ring per device plus a server-wide ring (for
// warnings the server itself records — e.g. a dropped malformed note, or
// fleet-capacity exhaustion per spec E6).
type SerialLogs struct {
	mu      sync.Mutex
	perDevice map[string]*Ring[SerialLogEntry]
	server    *Ring[SerialLogEntry]
}

// NewSerialLogs builds an empty SerialLogs.
func NewSerialLogs() *SerialLogs {
	return &SerialLogs{
		perDevice: make(map[string]*Ring[SerialLogEntry]),
		server:    NewRing[SerialLogEntry](serialRingCapacity),
	}
}

// AppendDevice records an entry on deviceUID's ring.
func (s *SerialLogs) AppendDevice(deviceUID string, e SerialLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.perDevice[deviceUID]
	if !ok {
		r = NewRing[SerialLogEntry](serialRingCapacity)
		s.perDevice[deviceUID] = r
	}
	r.Push(e)
}

// AppendServer records an entry on the server-wide ring.
func (s *SerialLogs) AppendServer(e SerialLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.Push(e)
}

// Warnf is a convenience for recording a server-ring warning, used by
// components (fleet capacity exhaustion, malformed-note drops) that have
// no other way to surface a diagnostic to the operator dashboard.
func (s *SerialLogs) Warnf(now float64, source, message string) {
	s.AppendServer(SerialLogEntry{Epoch: now, Message: message, Level: SerialWarn, Source: source})
}

// Device returns a copy of one device's serial ring, oldest first.
func (s *SerialLogs) Device(deviceUID string) []SerialLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.perDevice[deviceUID]
	if !ok {
		return nil
	}
	return r.Snapshot()
}

// Server returns a copy of the server-wide ring, oldest first.
func (s *SerialLogs) Server() []SerialLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.Snapshot()
}
