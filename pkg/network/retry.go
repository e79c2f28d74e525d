package network

import "time"

// Retry tracks a bounded reconnection schedule with a doubling delay.
type Retry struct {
	initial  time.Duration
	delay    time.Duration
	attempts int
	max      int
}

func NewRetry(max int, delay time.Duration) Retry {
	return Retry{initial: delay, delay: delay, max: max}
}

// Fail registers one more failed attempt and sleeps for the current
// delay. It reports false when the attempts are exhausted.
func (r *Retry) Fail() bool {
	r.attempts++
	if r.attempts > r.max {
		return false
	}
	time.Sleep(r.delay)
	r.delay *= 2
	return true
}

// Success resets the schedule.
func (r *Retry) Success() { r.delay = r.initial; r.attempts = 0 }

func (r *Retry) Attempts() int       { return r.attempts }
func (r *Retry) Time() time.Duration { return r.delay }
