package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/notifykit/notifykit/client"
	"github.com/notifykit/notifykit/notification"
	"github.com/notifykit/notifykit/preferences"
	"github.com/notifykit/notifykit/store"
	"github.com/notifykit/notifykit/stream"
	"github.com/notifykit/notifykit/toast"
)

// API is the collaborator contract the session drives. *client.Client
// satisfies it.
type API interface {
	FetchPage(ctx context.Context, page, pageSize int, f client.Filters) (client.Page, error)
	MarkRead(ctx context.Context, ids []string) (int, error)
	MarkAllRead(ctx context.Context) (int, error)
	UnreadCount(ctx context.Context) (int, error)
	GetPreferences(ctx context.Context) (preferences.Preferences, error)
	SavePreferences(ctx context.Context, u preferences.Update) (preferences.Preferences, error)
}

// Session is the per-login context object tying the engine together.
type Session struct {
	api      API
	store    *store.Store
	toasts   *toast.Manager
	consumer *stream.Consumer

	pageSize int
	filters  client.Filters
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
}

// New wires a session around the given collaborator and push transport.
func New(api API, transport stream.Transport, opts ...Option) *Session {
	s := &Session{
		api:      api,
		pageSize: 20,
		logger:   slog.Default(),
	}

	cfg := &sessionConfig{}
	for _, opt := range opts {
		opt(s, cfg)
	}

	toastOpts := append([]toast.Option{toast.WithLogger(s.logger)}, cfg.toastOpts...)
	s.toasts = toast.NewManager(toastOpts...)

	// The new-record hook is the session's wiring and always wins.
	storeOpts := append([]store.Option{store.WithLogger(s.logger)}, cfg.storeOpts...)
	storeOpts = append(storeOpts, store.WithOnNewRecord(func(rec notification.Record) {
		s.toasts.OnNewRecord(rec, s.store.Preferences())
	}))
	s.store = store.New(storeOpts...)

	consumerOpts := append([]stream.ConsumerOption{stream.WithLogger(s.logger)}, cfg.consumerOpts...)
	consumerOpts = append(consumerOpts, stream.WithOnDegraded(s.store.SetDegraded))
	s.consumer = stream.New(transport, s.store, consumerOpts...)

	return s
}

// NewFromConfig builds the HTTP client and websocket transport from Config
// and wires a session around them.
func NewFromConfig(cfg Config, opts ...Option) (*Session, error) {
	var clientOpts []client.Option
	var header http.Header
	if cfg.AuthToken != "" {
		clientOpts = append(clientOpts, client.WithAuthToken(cfg.AuthToken))
		header = http.Header{"Authorization": []string{"Bearer " + cfg.AuthToken}}
	}
	api, err := client.New(cfg.APIBaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	var wsOpts []stream.WebSocketOption
	if header != nil {
		wsOpts = append(wsOpts, stream.WithHeader(header))
	}
	transport := stream.NewWebSocketTransport(cfg.StreamURL, wsOpts...)

	opts = append([]Option{
		WithPageSize(cfg.PageSize),
		WithConsumerOptions(
			stream.WithDwell(cfg.StreamDwell),
			stream.WithRetryCeiling(cfg.RetryCeiling),
			stream.WithBackoff(stream.ExponentialBackoff{
				BaseDelay:    cfg.BackoffBase,
				MaxDelay:     cfg.BackoffMax,
				JitterFactor: 0.1,
			}),
		),
		WithToastOptions(
			toast.WithBaseTTL(cfg.ToastTTL),
			toast.WithExitDelay(cfg.ToastExit),
		),
	}, opts...)

	return New(api, transport, opts...), nil
}

// Start performs the initial sync: pulls preferences, loads the first inbox
// page, and opens the push stream. Calling Start on a running session is a
// no-op. The returned error reflects the first page fetch; the session keeps
// its stream alive regardless so later records still arrive.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if prefs, err := s.api.GetPreferences(ctx); err != nil {
		s.logger.Warn("preferences fetch failed, using defaults", "error", err)
	} else {
		s.store.SetPreferences(prefs)
	}

	err := s.FetchPage(ctx, 1)
	s.consumer.Start()
	return err
}

// FetchPage loads one inbox page into the store. A repeat call for the same
// page supersedes the earlier one: whichever response lands second with a
// stale generation is discarded.
func (s *Session) FetchPage(ctx context.Context, page int) error {
	gen := s.store.BeginPageLoad(page)
	res, err := s.api.FetchPage(ctx, page, s.pageSize, s.filters)
	s.store.CompletePageLoad(page, gen, res.Records, res.TotalCount, err)
	return err
}

// Refresh reloads the first page.
func (s *Session) Refresh(ctx context.Context) error {
	return s.FetchPage(ctx, 1)
}

// MarkRead flips the given records to read optimistically, then confirms the
// flip with the server. On failure the flip is rolled back (bounded by any
// status another source reached in the meantime) and a one-shot notice is
// queued.
func (s *Session) MarkRead(ctx context.Context, ids ...string) error {
	flipped := s.store.OptimisticMarkRead(ids)
	if len(flipped) == 0 {
		return nil
	}

	if _, err := s.api.MarkRead(ctx, flipped); err != nil {
		s.store.RollbackMarkRead(flipped)
		s.toasts.Notify(toast.KindError, "Couldn't mark as read", "Please try again.")
		return err
	}
	s.store.ConfirmMarkRead(flipped)
	return nil
}

// MarkAllRead flips the entire inbox to read with the same
// optimistic-confirm-or-rollback contract as MarkRead.
func (s *Session) MarkAllRead(ctx context.Context) error {
	flipped := s.store.OptimisticMarkAllRead()
	if len(flipped) == 0 {
		return nil
	}

	if _, err := s.api.MarkAllRead(ctx); err != nil {
		s.store.RollbackMarkRead(flipped)
		s.toasts.Notify(toast.KindError, "Couldn't mark all as read", "Please try again.")
		return err
	}
	s.store.ConfirmMarkRead(flipped)
	return nil
}

// SavePreferences applies a partial update optimistically, then persists it.
// A failed save restores the previous snapshot wholesale.
func (s *Session) SavePreferences(ctx context.Context, u preferences.Update) error {
	prev := s.store.Preferences()
	s.store.SetPreferences(preferences.Apply(prev, u))

	resolved, err := s.api.SavePreferences(ctx, u)
	if err != nil {
		s.store.SetPreferences(prev)
		s.toasts.Notify(toast.KindError, "Couldn't save preferences", "Your previous settings are still in effect.")
		return err
	}
	s.store.SetPreferences(resolved)
	return nil
}

// ServerUnreadCount asks the server for its authoritative unread counter.
// It never touches the store's local counter, which tracks cached records
// only.
func (s *Session) ServerUnreadCount(ctx context.Context) (int, error) {
	return s.api.UnreadCount(ctx)
}

// Allows reports whether a record would surface as a toast under the current
// preferences. Exposed for settings-page previews.
func (s *Session) Allows(rec notification.Record) bool {
	return preferences.Allows(rec, s.store.Preferences(), time.Now())
}

// Store exposes the canonical record cache for subscriptions and reads.
func (s *Session) Store() *store.Store {
	return s.store
}

// Toasts exposes the transient notice queue.
func (s *Session) Toasts() *toast.Manager {
	return s.toasts
}

// StreamState returns the push connection's lifecycle state.
func (s *Session) StreamState() stream.State {
	return s.consumer.State()
}

// Reset clears cached records and dismisses pending toasts without tearing
// down the stream, e.g. when switching inbox views.
func (s *Session) Reset() {
	s.store.Reset()
	s.toasts.DismissAll()
}

// Close tears the session down: stops the push stream, closes the store and
// the toast queue, and terminates every subscription. Safe to call
// repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.consumer.Stop()
	s.store.Close()
	s.toasts.Close()
}
