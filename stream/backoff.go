package stream

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy computes the delay before a reconnect attempt.
// Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	// NextInterval returns the delay for the given attempt. Attempt starts
	// at 1 for the first reconnect.
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay on every attempt, capped at MaxDelay,
// with optional jitter to spread simultaneous reconnects from many clients.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// NextInterval computes min(MaxDelay, BaseDelay * 2^(attempt-1)) ± jitter.
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := e.BaseDelay
	if base == 0 {
		base = time.Second
	}
	max := e.MaxDelay
	if max == 0 {
		max = 30 * time.Second
	}

	interval := float64(base) * math.Pow(2, float64(attempt-1))
	if interval > float64(max) {
		interval = float64(max)
	}

	if e.JitterFactor > 0 {
		spread := (rand.Float64()*2 - 1) * e.JitterFactor
		interval *= 1 + spread
		if interval > float64(max) {
			interval = float64(max)
		}
	}

	return time.Duration(interval)
}

// FixedBackoff waits the same interval on every attempt. Mostly useful in
// tests and local development.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// DefaultBackoffStrategy returns the production reconnect policy: one second
// doubling to a thirty second cap with ten percent jitter.
func DefaultBackoffStrategy() BackoffStrategy {
	return ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.1,
	}
}
