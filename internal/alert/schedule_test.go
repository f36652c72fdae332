package alert

import (
	"testing"
	"time"
)

func TestNextDailyEmailEpochRollsForwardWhenPast(t *testing.T) {
	s := NewScheduler(7, 0, "", 0)

	// "now" = today at 08:00 local, target is 07:00 -> already past, roll to tomorrow.
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.Local)
	next := s.NextDailyEmailEpoch(float64(now.Unix()))
	got := time.Unix(int64(next), 0).Local()

	if got.Hour() != 7 || got.Minute() != 0 {
		t.Fatalf("next = %v, want 07:00", got)
	}
	if !got.After(now) {
		t.Fatalf("next = %v, want strictly after now = %v", got, now)
	}
	if got.Day() != now.Day()+1 && got.Month() == now.Month() {
		t.Errorf("expected roll-forward to the next calendar day, got %v", got)
	}
}

func TestNextDailyEmailEpochSameDayWhenFuture(t *testing.T) {
	s := NewScheduler(20, 0, "", 0)
	now := time.Date(2026, 7, 31, 8, 0, 0, 0, time.Local)
	next := s.NextDailyEmailEpoch(float64(now.Unix()))
	got := time.Unix(int64(next), 0).Local()
	if got.Day() != now.Day() || got.Hour() != 20 {
		t.Fatalf("next = %v, want today at 20:00", got)
	}
}
