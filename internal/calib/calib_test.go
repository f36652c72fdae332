package calib

import "testing"

func TestSubmitConvergesOnTwoPerfectPoints(t *testing.T) {
	s := NewStore(100)
	if _, err := s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 4.0, VerifiedLevel: 0}, 0); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p, err := s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 20.0, VerifiedLevel: 100}, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !p.HasLearnedCalibration {
		t.Fatal("HasLearnedCalibration = false, want true")
	}
	if abs(p.Slope-6.25) > 1e-9 {
		t.Errorf("Slope = %v, want 6.25", p.Slope)
	}
	if abs(p.Offset-(-25)) > 1e-9 {
		t.Errorf("Offset = %v, want -25", p.Offset)
	}
	if abs(p.RSquared-1.0) > 1e-9 {
		t.Errorf("RSquared = %v, want 1.0", p.RSquared)
	}
	if got := p.Apply(12.0); abs(got-50.0) > 1e-9 {
		t.Errorf("Apply(12.0) = %v, want 50.0", got)
	}
}

func TestSubmitSinglePointDoesNotLearn(t *testing.T) {
	s := NewStore(100)
	p, err := s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 4.0, VerifiedLevel: 0}, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.HasLearnedCalibration {
		t.Error("HasLearnedCalibration = true with one entry, want false")
	}
	if p.EntryCount != 1 {
		t.Errorf("EntryCount = %d, want 1", p.EntryCount)
	}
}

func TestSubmitExcludesOutOfRangeFromRegressionButKeepsEntry(t *testing.T) {
	s := NewStore(100)
	_, _ = s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 4.0, VerifiedLevel: 0}, 0)
	_, _ = s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 20.0, VerifiedLevel: 100}, 0)
	p, _ := s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 25.0, VerifiedLevel: 9999}, 0)

	if p.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3 (kept for audit)", p.EntryCount)
	}
	if abs(p.Slope-6.25) > 1e-9 {
		t.Errorf("Slope = %v, want 6.25 (unaffected by out-of-range entry)", p.Slope)
	}
}

func TestSubmitEvictsOldestOnOverflow(t *testing.T) {
	s := NewStore(2)
	_, _ = s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 4.0, VerifiedLevel: 0, Notes: "first"}, 0)
	_, _ = s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 20.0, VerifiedLevel: 100, Notes: "second"}, 0)
	_, _ = s.Submit(Entry{DeviceUID: "dev:A", TankNumber: 1, SensorReading: 12.0, VerifiedLevel: 50, Notes: "third"}, 0)

	log := s.Entries("dev:A", 1)
	if len(log) != 2 {
		t.Fatalf("len(log) = %d, want 2", len(log))
	}
	if log[0].Notes != "second" {
		t.Errorf("oldest retained = %q, want %q", log[0].Notes, "second")
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
