package history

import "testing"

func TestAlarmLogClearMatchesMostRecentUncleared(t *testing.T) {
	l := NewAlarmLog()
	l.Open(AlarmLogEntry{Epoch: 100, DeviceUID: "dev:A", Tank: 1, IsHigh: true})
	l.Open(AlarmLogEntry{Epoch: 200, DeviceUID: "dev:A", Tank: 1, IsHigh: true})

	if !l.Clear("dev:A", 1, 300) {
		t.Fatal("expected Clear to find a match")
	}

	snap := l.Snapshot()
	if snap[0].Cleared {
		t.Error("first entry should remain uncleared")
	}
	if !snap[1].Cleared || snap[1].ClearedEpoch != 300 {
		t.Errorf("second entry = %+v, want cleared at 300", snap[1])
	}
}

func TestAlarmLogClearNoMatchReturnsFalse(t *testing.T) {
	l := NewAlarmLog()
	if l.Clear("dev:X", 9, 100) {
		t.Error("expected no match on empty log")
	}
}
