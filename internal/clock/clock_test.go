package clock_test

import (
	"testing"
	"time"

	"tickd/internal/clock"
)

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2025, 8, 6, 12, 0, 0, 0, time.UTC)
	c := clock.Fake(start)

	var hooked []time.Duration
	c.OnSleep(func(d time.Duration) { hooked = append(hooked, d) })

	c.Sleep(time.Second)
	c.Sleep(2 * time.Second)
	c.Advance(500 * time.Millisecond)

	if got := c.Now().Sub(start); got != 3500*time.Millisecond {
		t.Fatalf("unexpected elapsed: %v", got)
	}
	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Fatalf("unexpected sleeps: %v", sleeps)
	}
	if len(hooked) != 2 {
		t.Fatalf("expected hook to run twice, got %d", len(hooked))
	}
}

func TestFakeSleepIgnoresNegative(t *testing.T) {
	start := time.Unix(0, 0)
	c := clock.Fake(start)
	c.Sleep(-time.Second)
	if !c.Now().Equal(start) {
		t.Fatalf("negative sleep moved the clock to %v", c.Now())
	}
}
