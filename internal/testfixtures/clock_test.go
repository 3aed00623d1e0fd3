package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if clock.Now().Weekday() != time.Monday {
		t.Fatalf("reference time must fall on a Monday, got %v", clock.Now().Weekday())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}

	nowFn := clock.NowFunc()
	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("NowFunc must follow the clock, got %v want %v", got, clock.Now())
	}
}

func TestClockSetWallClock(t *testing.T) {
	clock := NewClock(time.Time{})

	for _, day := range []time.Weekday{time.Monday, time.Wednesday, time.Saturday, time.Sunday} {
		got := clock.SetWallClock(day, 17, 30)
		if got.Weekday() != day || got.Hour() != 17 || got.Minute() != 30 {
			t.Fatalf("SetWallClock(%v) = %v", day, got)
		}
		if got.Before(ReferenceTime().Truncate(24*time.Hour)) || got.After(ReferenceTime().AddDate(0, 0, 7)) {
			t.Fatalf("SetWallClock(%v) left the reference week: %v", day, got)
		}
	}
}

func TestNilClockFallsBackToWallTime(t *testing.T) {
	var clock *Clock
	before := time.Now()
	if got := clock.NowFunc()(); got.Before(before) {
		t.Fatalf("expected wall clock time, got %v", got)
	}
}
