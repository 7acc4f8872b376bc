package clock

import (
	"testing"
	"time"
)

func TestTestClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := TestClock{FixedTime: fixed}

	if got := c.Now(); !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}

	if got := Since(c, fixed.Add(-5*24*time.Hour)); got != 5*24*time.Hour {
		t.Errorf("Since() = %v, want 120h", got)
	}
}

func TestRealClock(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	if got.Before(before) {
		t.Errorf("RealClock.Now() = %v, earlier than %v", got, before)
	}
}
