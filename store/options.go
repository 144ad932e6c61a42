package store

import (
	"log/slog"
	"time"

	"github.com/notifykit/notifykit/notification"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnNewRecord registers a hook invoked, outside the store lock, for every
// record a stream batch inserts for the first time. The toast manager hangs
// off this hook.
func WithOnNewRecord(fn func(notification.Record)) Option {
	return func(s *Store) {
		s.onNewRecord = fn
	}
}

// WithBufferSize sets the per-subscription channel buffer. The default of 1
// gives pure latest-wins semantics.
func WithBufferSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// WithClock overrides the time source used for ReadAt stamps. Intended for
// tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
