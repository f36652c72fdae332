package fleet

import "testing"

func TestMutateCreatesAndReuses(t *testing.T) {
	s, err := NewStore(4, 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := s.Mutate("dev:1", 1, func(r *TankRecord) { r.Level = 10 }); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if err := s.Mutate("dev:1", 1, func(r *TankRecord) { r.Level += 5 }); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	r, ok := s.Lookup("dev:1", 1)
	if !ok {
		t.Fatal("Lookup: not found")
	}
	if r.Level != 15 {
		t.Errorf("Level = %v, want 15", r.Level)
	}
}

func TestMutateCapacityExhausted(t *testing.T) {
	s, err := NewStore(2, 2)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Mutate("dev:1", 1, func(r *TankRecord) {}); err != nil {
		t.Fatalf("Mutate 1: %v", err)
	}
	if err := s.Mutate("dev:2", 1, func(r *TankRecord) {}); err != nil {
		t.Fatalf("Mutate 2: %v", err)
	}
	err = s.Mutate("dev:3", 1, func(r *TankRecord) {})
	if err != ErrCapacityExhausted {
		t.Errorf("Mutate 3 err = %v, want ErrCapacityExhausted", err)
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	s, err := NewStore(8, 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	order := []Key{{"dev:a", 1}, {"dev:b", 2}, {"dev:a", 2}}
	for _, k := range order {
		if err := s.Mutate(k.DeviceUID, k.TankNumber, func(r *TankRecord) {}); err != nil {
			t.Fatalf("Mutate: %v", err)
		}
	}
	snap := s.Snapshot()
	if len(snap) != len(order) {
		t.Fatalf("len(snap) = %d, want %d", len(snap), len(order))
	}
	for i, k := range order {
		if snap[i].DeviceUID != k.DeviceUID || snap[i].TankNumber != k.TankNumber {
			t.Errorf("snap[%d] = %+v, want %+v", i, snap[i], k)
		}
	}
}

func TestDeviceMutateAndLookup(t *testing.T) {
	s, err := NewStore(4, 4)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.MutateDevice("dev:1", func(d *DeviceMeta) {
		d.SupplyVoltage = 13.2
		d.SupplyVoltageEpoch = 100
	}); err != nil {
		t.Fatalf("MutateDevice: %v", err)
	}
	d, ok := s.LookupDevice("dev:1")
	if !ok {
		t.Fatal("LookupDevice: not found")
	}
	if d.SupplyVoltage != 13.2 {
		t.Errorf("SupplyVoltage = %v, want 13.2", d.SupplyVoltage)
	}
}

func TestApplyBaselineFirstSampleAndRollForward(t *testing.T) {
	r := newTankRecord("dev:1", 1)
	r.Level = 50
	r.ApplyBaseline(1000)
	if r.PreviousLevelEpoch != 0 || r.PreviousLevel != 50 {
		t.Errorf("first-sample baseline = (%v, %v), want (50, 0)", r.PreviousLevel, r.PreviousLevelEpoch)
	}
	r.LastUpdateEpoch = 1000

	r.Level = 60
	r.ApplyBaseline(1000 + 3600) // only 1h later: no roll forward
	if r.PreviousLevel != 50 {
		t.Errorf("PreviousLevel rolled forward too early: %v", r.PreviousLevel)
	}

	r.ApplyBaseline(1000 + baselineAgeSeconds)
	if r.PreviousLevel != 60 || r.PreviousLevelEpoch != 1000 {
		t.Errorf("PreviousLevel/Epoch after 22h = (%v, %v), want (60, 1000)", r.PreviousLevel, r.PreviousLevelEpoch)
	}
}

func TestSetSensorMaFloor(t *testing.T) {
	r := newTankRecord("dev:1", 1)
	r.SetSensorMa(2.0)
	if r.SensorMa != 0 {
		t.Errorf("SensorMa = %v after sub-floor reading, want 0", r.SensorMa)
	}
	r.SetSensorMa(12.0)
	if r.SensorMa != 12.0 {
		t.Errorf("SensorMa = %v, want 12.0", r.SensorMa)
	}
	r.SetSensorMa(1.0)
	if r.SensorMa != 12.0 {
		t.Errorf("SensorMa overwritten by sub-floor reading: %v", r.SensorMa)
	}
}

func TestRecordSMSCapsRingAtTen(t *testing.T) {
	r := newTankRecord("dev:1", 1)
	for i := 0; i < 15; i++ {
		r.RecordSMS(float64(i))
	}
	if len(r.SmsTimestamps) != maxSMSTimestamps {
		t.Fatalf("len(SmsTimestamps) = %d, want %d", len(r.SmsTimestamps), maxSMSTimestamps)
	}
	if r.SmsTimestamps[0] != 5 {
		t.Errorf("oldest retained = %v, want 5", r.SmsTimestamps[0])
	}
	if r.LastSmsEpoch != 14 {
		t.Errorf("LastSmsEpoch = %v, want 14", r.LastSmsEpoch)
	}
}
