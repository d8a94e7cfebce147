package monitor

import (
	"testing"
	"time"
)

func TestNextFireLaterToday(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, loc)
	next := NextFire(now, 8, 30)
	want := time.Date(2025, 3, 10, 8, 30, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("next=%v want=%v", next, want)
	}
}

func TestNextFireRollsToTomorrow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	next := NextFire(now, 8, 30)
	want := time.Date(2025, 3, 11, 8, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next=%v want=%v", next, want)
	}
}

func TestNextFireExactMinuteRollsOver(t *testing.T) {
	// Firing exactly at the scheduled instant must target tomorrow, not
	// re-fire immediately.
	now := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	next := NextFire(now, 8, 30)
	want := time.Date(2025, 3, 11, 8, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next=%v want=%v", next, want)
	}
}

func TestNextFireMonthBoundary(t *testing.T) {
	now := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	next := NextFire(now, 6, 0)
	want := time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next=%v want=%v", next, want)
	}
}
