package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	timer := c.NewTimer(5 * time.Millisecond)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
	if c.Since(start) < 5*time.Millisecond {
		t.Errorf("Since() = %v, want >= 5ms", c.Since(start))
	}
}

func TestMockClock_TimerFiresOnAdvance(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	timer := c.NewTimer(time.Second)

	if got := c.PendingTimers(); got != 1 {
		t.Fatalf("PendingTimers() = %d, want 1", got)
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired before its deadline")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case got := <-timer.C():
		if !got.Equal(base.Add(time.Second)) {
			t.Errorf("fired at %v, want %v", got, base.Add(time.Second))
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
	if got := c.PendingTimers(); got != 0 {
		t.Errorf("PendingTimers() after fire = %d, want 0", got)
	}
}

func TestMockClock_StoppedTimerNeverFires(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	timer := c.NewTimer(time.Second)
	if !timer.Stop() {
		t.Fatal("Stop() on an armed timer should report true")
	}
	c.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
	if timer.Stop() {
		t.Error("second Stop() should report false")
	}
}

func TestMockClock_ZeroDurationFiresImmediately(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	timer := c.NewTimer(0)
	select {
	case <-timer.C():
	default:
		t.Fatal("zero-duration timer should fire on creation")
	}
}
