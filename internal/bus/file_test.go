package bus

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestFileBus(t *testing.T) *FileBus {
	t.Helper()
	fb, err := NewFileBus(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileBus: %v", err)
	}
	t.Cleanup(func() { fb.Close() })
	return fb
}

func TestFileBusEnqueueThenDrain(t *testing.T) {
	fb := newTestFileBus(t)
	ctx := context.Background()

	body := map[string]any{"c": "dev:A", "k": float64(1), "ma": 8.0}
	if err := fb.Enqueue(ctx, FileTelemetry, body, true); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	notes, err := fb.Drain(ctx, FileTelemetry, 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1", len(notes))
	}
	if notes[0].Body["c"] != "dev:A" {
		t.Errorf("Body[c] = %v, want dev:A", notes[0].Body["c"])
	}
}

func TestFileBusDrainIsBoundedAndDoesNotRedeliver(t *testing.T) {
	fb := newTestFileBus(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := fb.Enqueue(ctx, FileAlarm, map[string]any{"i": float64(i)}, false); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	first, err := fb.Drain(ctx, FileAlarm, 3)
	if err != nil {
		t.Fatalf("Drain 1: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("len(first) = %d, want 3", len(first))
	}

	second, err := fb.Drain(ctx, FileAlarm, 10)
	if err != nil {
		t.Fatalf("Drain 2: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("len(second) = %d, want 2 (remaining, not redelivered)", len(second))
	}
	if second[0].Body["i"] != 3.0 {
		t.Errorf("second[0].Body[i] = %v, want 3", second[0].Body["i"])
	}
}

func TestFileBusDrainEmptyFileReturnsNil(t *testing.T) {
	fb := newTestFileBus(t)
	notes, err := fb.Drain(context.Background(), FileDaily, 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if notes != nil {
		t.Errorf("notes = %v, want nil", notes)
	}
}

func TestFileBusDeviceAddressingSanitizesColons(t *testing.T) {
	fb := newTestFileBus(t)
	ctx := context.Background()
	target := DeviceFile("dev:A", "relay.qi")
	if err := fb.Enqueue(ctx, target, map[string]any{"relay": "on"}, true); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	notes, err := fb.Drain(ctx, target, 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(notes) != 1 || notes[0].Body["relay"] != "on" {
		t.Errorf("notes = %+v, want one relay=on note", notes)
	}
}

func TestFileBusCurrentTimeWithoutBeaconIsNotOK(t *testing.T) {
	fb := newTestFileBus(t)
	if _, ok := fb.CurrentTime(); ok {
		t.Error("CurrentTime ok = true with no beacon file, want false")
	}
}
