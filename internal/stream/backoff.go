package stream

import "time"

// Backoff computes exponential reconnect delays: base doubled per attempt,
// capped at max. Attempts are 1-based.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff matches the upstream feed's documented reconnect policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Base: 5 * time.Second,
		Max:  60 * time.Second,
	}
}

// Next returns the delay before the given attempt.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 5 * time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 60 * time.Second
	}

	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= max {
			return max
		}
	}
	if wait > max {
		return max
	}
	return wait
}
