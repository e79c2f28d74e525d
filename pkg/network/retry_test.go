package network

import (
	"testing"
	"time"
)

func TestRetrySchedule(t *testing.T) {
	t.Parallel()
	r := NewRetry(3, time.Millisecond)

	delays := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	for i, want := range delays {
		if r.Time() != want {
			t.Fatalf("attempt %d delay = %v, want %v", i, r.Time(), want)
		}
		if !r.Fail() {
			t.Fatalf("attempt %d exhausted too early", i)
		}
	}
	if r.Fail() {
		t.Fatal("schedule did not exhaust after max attempts")
	}
	if r.Attempts() != 4 {
		t.Fatalf("attempts = %d, want 4", r.Attempts())
	}
}

func TestRetrySuccessResets(t *testing.T) {
	t.Parallel()
	r := NewRetry(2, time.Millisecond)
	r.Fail()
	r.Fail()
	r.Success()
	if r.Attempts() != 0 || r.Time() != time.Millisecond {
		t.Fatalf("after reset: attempts = %d, delay = %v", r.Attempts(), r.Time())
	}
	if !r.Fail() {
		t.Fatal("reset schedule exhausted immediately")
	}
}
