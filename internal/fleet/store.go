package fleet

import (
	"errors"
	"sync"
)

// ErrCapacityExhausted is returned when a tank or device table is full.
var ErrCapacityExhausted = errors.New("fleet: capacity exhausted")

// Store is the live fleet table: every (device, tank) pair the server has
// ever seen, plus per-device metadata. All mutation happens through Mutate,
// which holds the write lock for the duration of the caller's closure — in
// the running server that closure is always invoked from the single
// ingest-pipeline goroutine draining the bus, so contention is only ever
// with readers. Reads go through Snapshot, which copies out under a brief
// read lock so HTTP handlers never hold the lock across a response write.
type Store struct {
	mu sync.RWMutex

	tankIdx    *index
	tanks      []*TankRecord
	tankCap    int

	deviceIdx  map[string]int
	devices    []*DeviceMeta
	deviceCap  int
}

// NewStore builds a Store with room for at most tankCapacity tank records
// and deviceCapacity device-metadata entries. The tank index table is sized
// to the next power of two at or above 2*tankCapacity.
func NewStore(tankCapacity, deviceCapacity int) (*Store, error) {
	if tankCapacity <= 0 || deviceCapacity <= 0 {
		return nil, errors.New("fleet: capacities must be positive")
	}
	return &Store{
		tankIdx:   newIndex(tankCapacity),
		tanks:     make([]*TankRecord, 0, tankCapacity),
		tankCap:   tankCapacity,
		deviceIdx: make(map[string]int, deviceCapacity),
		devices:   make([]*DeviceMeta, 0, deviceCapacity),
		deviceCap: deviceCapacity,
	}, nil
}

// Mutate looks up or creates the record for (device, tank), then invokes fn
// on it while holding the write lock. Returns ErrCapacityExhausted if the
// record doesn't exist yet and the table is full.
func (s *Store) Mutate(device string, tank int, fn func(r *TankRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.getOrCreateLocked(device, tank)
	if err != nil {
		return err
	}
	fn(r)
	return nil
}

func (s *Store) getOrCreateLocked(device string, tank int) (*TankRecord, error) {
	k := Key{DeviceUID: device, TankNumber: tank}
	pos, found := s.tankIdx.find(k)
	if found {
		return s.tanks[s.tankIdx.slots[pos].recordSlot], nil
	}
	if len(s.tanks) >= s.tankCap {
		return nil, ErrCapacityExhausted
	}
	r := newTankRecord(device, tank)
	slot := len(s.tanks)
	s.tanks = append(s.tanks, r)
	s.tankIdx.insert(pos, k, slot)
	return r, nil
}

// Lookup returns a read-only copy of the record for (device, tank), if present.
func (s *Store) Lookup(device string, tank int) (TankRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, found := s.tankIdx.find(Key{DeviceUID: device, TankNumber: tank})
	if !found {
		return TankRecord{}, false
	}
	r := s.tanks[s.tankIdx.slots[pos].recordSlot]
	return *r, true
}

// Snapshot returns a copy of every tank record, in insertion order.
func (s *Store) Snapshot() []TankRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TankRecord, len(s.tanks))
	for i, r := range s.tanks {
		out[i] = *r
	}
	return out
}

// MutateDevice looks up or creates device metadata for uid, then invokes fn
// on it while holding the write lock.
func (s *Store) MutateDevice(uid string, fn func(d *DeviceMeta)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.deviceIdx[uid]
	if !ok {
		if len(s.devices) >= s.deviceCap {
			return ErrCapacityExhausted
		}
		d := &DeviceMeta{DeviceUID: uid}
		idx = len(s.devices)
		s.devices = append(s.devices, d)
		s.deviceIdx[uid] = idx
	}
	fn(s.devices[idx])
	return nil
}

// LookupDevice returns a copy of the device metadata for uid, if present.
func (s *Store) LookupDevice(uid string) (DeviceMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.deviceIdx[uid]
	if !ok {
		return DeviceMeta{}, false
	}
	return *s.devices[idx], true
}

// DeviceSnapshot returns a copy of every device's metadata, in insertion order.
func (s *Store) DeviceSnapshot() []DeviceMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeviceMeta, len(s.devices))
	for i, d := range s.devices {
		out[i] = *d
	}
	return out
}
