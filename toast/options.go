package toast

import (
	"log/slog"
	"time"
)

// Option configures a Manager.
type Option func(*Manager)

// WithBaseTTL sets the auto-dismiss delay for normal and low priority toasts.
func WithBaseTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.baseTTL = d
		}
	}
}

// WithExtendedTTL sets the auto-dismiss delay for high priority and error
// toasts.
func WithExtendedTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.extendedTTL = d
		}
	}
}

// WithExitDelay sets how long a dismissed entry lingers in the queue, flagged
// as exiting, before removal.
func WithExitDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.exitDelay = d
		}
	}
}

// WithBufferSize sets the subscription channel capacity.
func WithBufferSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.bufferSize = n
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
