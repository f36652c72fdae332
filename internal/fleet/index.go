package fleet

import "hash/maphash"

// index is a fixed-capacity, open-addressed hash table mapping Key to a
// slot in the records slice. It exists because the fleet can grow to
// thousands of (device, tank) pairs and the ingest pipeline does a lookup
// on every single note drained off the bus — a linear scan doesn't hold up
// at that rate. Capacity is fixed at startup: the table never resizes, so
// probe behavior is predictable under load.
type index struct {
	seed  maphash.Seed
	slots []indexSlot
	mask  uint64
}

type indexSlot struct {
	used       bool
	key        Key
	recordSlot int
}

// newIndex builds a table sized to the next power of two at or above
// 2*capacity, per the fixed load-factor requirement: a table held below
// roughly 50% full keeps linear-probe sequences short even at capacity.
func newIndex(capacity int) *index {
	size := nextPow2(capacity * 2)
	return &index{
		seed:  maphash.MakeSeed(),
		slots: make([]indexSlot, size),
		mask:  uint64(size - 1),
	}
}

func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (ix *index) hash(k Key) uint64 {
	var h maphash.Hash
	h.SetSeed(ix.seed)
	_, _ = h.WriteString(k.DeviceUID)
	_ = h.WriteByte(0)
	var tankBuf [8]byte
	t := uint64(k.TankNumber)
	for i := range tankBuf {
		tankBuf[i] = byte(t)
		t >>= 8
	}
	_, _ = h.Write(tankBuf[:])
	return h.Sum64()
}

// find probes for k starting at its hash bucket. It returns the slot index
// and true if k is already present, or the first empty slot index and
// false if k is absent — ready for insertion at that position.
func (ix *index) find(k Key) (slotIdx int, found bool) {
	start := int(ix.hash(k) & ix.mask)
	n := len(ix.slots)
	for i := 0; i < n; i++ {
		pos := (start + i) % n
		s := &ix.slots[pos]
		if !s.used {
			return pos, false
		}
		if s.key == k {
			return pos, true
		}
	}
	// Unreachable under the 2x-capacity invariant enforced by the caller,
	// since the table can never fill.
	return -1, false
}

func (ix *index) insert(pos int, k Key, recordSlot int) {
	ix.slots[pos] = indexSlot{used: true, key: k, recordSlot: recordSlot}
}
