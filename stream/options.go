package stream

import (
	"log/slog"
	"time"
)

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithBackoff replaces the reconnect delay policy.
func WithBackoff(b BackoffStrategy) ConsumerOption {
	return func(c *Consumer) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithDwell sets the minimum time a connection must stay open before the
// retry counter resets. Guards against a flapping connection resetting the
// backoff ladder.
func WithDwell(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.dwell = d
		}
	}
}

// WithRetryCeiling sets the attempt count past which the degraded indicator
// is raised. Zero disables the indicator.
func WithRetryCeiling(n int) ConsumerOption {
	return func(c *Consumer) {
		if n >= 0 {
			c.retryCeiling = n
		}
	}
}

// WithOnDegraded registers the hook toggled when reconnect attempts exceed
// the ceiling (true) and when a connection is reestablished (false). The
// store's degraded flag hangs off this hook.
func WithOnDegraded(fn func(bool)) ConsumerOption {
	return func(c *Consumer) {
		c.onDegraded = fn
	}
}

// WithLogger sets the consumer logger.
func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for the dwell check. Intended for
// tests.
func WithClock(now func() time.Time) ConsumerOption {
	return func(c *Consumer) {
		if now != nil {
			c.now = now
		}
	}
}
