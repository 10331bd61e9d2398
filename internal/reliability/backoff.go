package reliability

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if cap > 0 && d >= cap {
			return cap
		}
	}
	return d
}

// Schedule is a backoff.BackOff yielding base*2^n before the n-th retry.
type Schedule struct {
	base    time.Duration
	cap     time.Duration
	attempt int
}

var _ backoff.BackOff = (*Schedule)(nil)

func NewSchedule(base, cap time.Duration) *Schedule {
	if base <= 0 {
		base = time.Second
	}
	return &Schedule{base: base, cap: cap}
}

func (s *Schedule) NextBackOff() time.Duration {
	s.attempt++
	return ExponentialBackoff(s.attempt, s.base, s.cap)
}

func (s *Schedule) Reset() { s.attempt = 0 }
