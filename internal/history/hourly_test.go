package history

import "testing"

func TestHourlyStorePushAndSeries(t *testing.T) {
	h := NewHourlyStore()
	h.Push("dev:A", 1, Snapshot{Epoch: 100, Level: 10, Voltage: 13.1})
	h.Push("dev:A", 1, Snapshot{Epoch: 200, Level: 12, Voltage: 13.0})

	series := h.Series("dev:A", 1)
	if len(series) != 2 {
		t.Fatalf("len(series) = %d, want 2", len(series))
	}
	if series[1].Level != 12 {
		t.Errorf("series[1].Level = %v, want 12", series[1].Level)
	}
}

func TestHourlyStorePruneDropsOldSamples(t *testing.T) {
	h := NewHourlyStore()
	h.Push("dev:A", 1, Snapshot{Epoch: 100})
	h.Push("dev:A", 1, Snapshot{Epoch: 100000})
	h.Prune(50000)

	series := h.Series("dev:A", 1)
	if len(series) != 1 || series[0].Epoch != 100000 {
		t.Errorf("series = %+v, want only the 100000 sample", series)
	}
}

func TestHourlyStoreSummarizeRange(t *testing.T) {
	h := NewHourlyStore()
	h.Push("dev:A", 1, Snapshot{Epoch: 10, Level: 0, Voltage: 12})
	h.Push("dev:A", 1, Snapshot{Epoch: 20, Level: 10, Voltage: 13})
	h.Push("dev:A", 1, Snapshot{Epoch: 9999, Level: 999, Voltage: 999}) // out of range

	stats := h.SummarizeRange(0, 100)
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d, want 1", len(stats))
	}
	s := stats[0]
	if s.MinLevel != 0 || s.MaxLevel != 10 || s.AvgLevel != 5 {
		t.Errorf("stats = %+v, want min=0 max=10 avg=5", s)
	}
	if s.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", s.SampleCount)
	}
}
