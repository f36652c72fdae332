package history

import (
	"sync"

	"github.com/coldbrook/fleetwatch/internal/fleet"
)

// hourlyRingCapacity is 168 entries: 7 days x 24h (spec §3).
const hourlyRingCapacity = 168

// Snapshot is one hot-tier sample: level and voltage at an epoch.
type Snapshot struct {
	Epoch   float64
	Level   float64
	Voltage float64
}

// HourlyStore holds one bounded ring per (deviceUid, tankNumber), written
// on every telemetry ingest (spec §4.8).
type HourlyStore struct {
	mu    sync.RWMutex
	rings map[fleet.Key]*Ring[Snapshot]
}

// NewHourlyStore builds an empty HourlyStore.
func NewHourlyStore() *HourlyStore {
	return &HourlyStore{rings: make(map[fleet.Key]*Ring[Snapshot])}
}

// Push records one sample for (device, tank).
func (h *HourlyStore) Push(device string, tank int, snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := fleet.Key{DeviceUID: device, TankNumber: tank}
	r, ok := h.rings[k]
	if !ok {
		r = NewRing[Snapshot](hourlyRingCapacity)
		h.rings[k] = r
	}
	r.Push(snap)
}

// Series returns a copy of (device, tank)'s samples, oldest first.
func (h *HourlyStore) Series(device string, tank int) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rings[fleet.Key{DeviceUID: device, TankNumber: tank}]
	if !ok {
		return nil
	}
	return r.Snapshot()
}

// Prune drops samples older than cutoffEpoch from every tank's ring.
func (h *HourlyStore) Prune(cutoffEpoch float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rings {
		r.Prune(func(s Snapshot) bool { return s.Epoch >= cutoffEpoch })
	}
}

// MonthlyStats summarizes one tank's samples falling in [start, end).
type MonthlyStats struct {
	Key        fleet.Key
	MinLevel   float64
	MaxLevel   float64
	AvgLevel   float64
	MinVoltage float64
	MaxVoltage float64
	AvgVoltage float64
	SampleCount int
}

// SummarizeRange computes MonthlyStats for every tank over [start, end).
func (h *HourlyStore) SummarizeRange(start, end float64) []MonthlyStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]MonthlyStats, 0, len(h.rings))
	for k, r := range h.rings {
		var sumLevel, sumVoltage float64
		var minLevel, maxLevel, minVoltage, maxVoltage float64
		n := 0
		for _, s := range r.Snapshot() {
			if s.Epoch < start || s.Epoch >= end {
				continue
			}
			if n == 0 {
				minLevel, maxLevel = s.Level, s.Level
				minVoltage, maxVoltage = s.Voltage, s.Voltage
			} else {
				minLevel = min(minLevel, s.Level)
				maxLevel = max(maxLevel, s.Level)
				minVoltage = min(minVoltage, s.Voltage)
				maxVoltage = max(maxVoltage, s.Voltage)
			}
			sumLevel += s.Level
			sumVoltage += s.Voltage
			n++
		}
		if n == 0 {
			continue
		}
		out = append(out, MonthlyStats{
			Key:         k,
			MinLevel:    minLevel,
			MaxLevel:    maxLevel,
			AvgLevel:    sumLevel / float64(n),
			MinVoltage:  minVoltage,
			MaxVoltage:  maxVoltage,
			AvgVoltage:  sumVoltage / float64(n),
			SampleCount: n,
		})
	}
	return out
}
