package session

import (
	"log/slog"

	"github.com/notifykit/notifykit/client"
	"github.com/notifykit/notifykit/store"
	"github.com/notifykit/notifykit/stream"
	"github.com/notifykit/notifykit/toast"
)

type sessionConfig struct {
	storeOpts    []store.Option
	toastOpts    []toast.Option
	consumerOpts []stream.ConsumerOption
}

// Option configures a Session.
type Option func(*Session, *sessionConfig)

// WithPageSize sets how many records each inbox page requests.
func WithPageSize(n int) Option {
	return func(s *Session, _ *sessionConfig) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithFilters applies server-side filters to every page fetch.
func WithFilters(f client.Filters) Option {
	return func(s *Session, _ *sessionConfig) {
		s.filters = f
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session, _ *sessionConfig) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreOptions forwards options to the underlying store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(_ *Session, cfg *sessionConfig) {
		cfg.storeOpts = append(cfg.storeOpts, opts...)
	}
}

// WithToastOptions forwards options to the toast manager.
func WithToastOptions(opts ...toast.Option) Option {
	return func(_ *Session, cfg *sessionConfig) {
		cfg.toastOpts = append(cfg.toastOpts, opts...)
	}
}

// WithConsumerOptions forwards options to the stream consumer.
func WithConsumerOptions(opts ...stream.ConsumerOption) Option {
	return func(_ *Session, cfg *sessionConfig) {
		cfg.consumerOpts = append(cfg.consumerOpts, opts...)
	}
}
