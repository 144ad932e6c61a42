package toast

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notifykit/notifykit/notification"
	"github.com/notifykit/notifykit/preferences"
)

const (
	defaultBaseTTL     = 5 * time.Second
	defaultExtendedTTL = 12 * time.Second
	defaultExitDelay   = 200 * time.Millisecond
)

// Manager owns the toast queue. All methods are safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	entries     []Entry
	timers      map[string]*time.Timer
	subscribers map[*Subscription]struct{}
	closed      bool

	baseTTL     time.Duration
	extendedTTL time.Duration
	exitDelay   time.Duration
	bufferSize  int
	now         func() time.Time
	logger      *slog.Logger
}

// NewManager creates an empty toast queue.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		timers:      make(map[string]*time.Timer),
		subscribers: make(map[*Subscription]struct{}),
		baseTTL:     defaultBaseTTL,
		extendedTTL: defaultExtendedTTL,
		exitDelay:   defaultExitDelay,
		bufferSize:  defaultBufferSize,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnNewRecord surfaces a record as a toast when the preference snapshot
// allows it. The returned id identifies the queued entry; ok is false when
// the record was filtered out or the manager is closed.
func (m *Manager) OnNewRecord(rec notification.Record, prefs preferences.Preferences) (id string, ok bool) {
	if !preferences.Allows(rec, prefs, m.now()) {
		return "", false
	}

	entry := Entry{
		Title: rec.Title,
		Body:  rec.Body,
		Kind:  kindFor(rec.Priority),
		TTL:   m.ttlFor(rec.Priority),
	}
	if len(rec.Actions) > 0 {
		action := rec.Actions[0]
		entry.Action = &action
	} else if rec.ActionRef != "" {
		entry.Action = &notification.Action{URL: rec.ActionRef}
	}
	return m.push(entry)
}

// Notify enqueues an engine-originated notice, such as a failed mark-read
// command. It bypasses preference filtering.
func (m *Manager) Notify(kind Kind, title, body string) (id string, ok bool) {
	ttl := m.baseTTL
	if kind == KindError {
		ttl = m.extendedTTL
	}
	return m.push(Entry{Title: title, Body: body, Kind: kind, TTL: ttl})
}

func (m *Manager) push(entry Entry) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", false
	}

	entry.ID = uuid.NewString()
	entry.CreatedAt = m.now()
	m.entries = append(m.entries, entry)

	if !entry.Sticky() {
		id := entry.ID
		m.timers[id] = time.AfterFunc(entry.TTL, func() {
			m.Dismiss(id)
		})
	}

	m.logger.Debug("toast queued",
		slog.String("id", entry.ID),
		slog.String("kind", string(entry.Kind)),
		slog.Duration("ttl", entry.TTL))

	m.notifyLocked()
	return entry.ID, true
}

// Dismiss cancels the entry's timer and flags it as exiting. The entry is
// removed from the queue after the exit delay so presentation layers can
// animate it out; logically the entry counts as dismissed immediately.
// Dismissing an unknown or already-exiting id is a no-op.
func (m *Manager) Dismiss(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	i := slices.IndexFunc(m.entries, func(e Entry) bool { return e.ID == id })
	if i < 0 || m.entries[i].Exiting {
		return false
	}

	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	m.entries[i].Exiting = true
	m.notifyLocked()

	m.timers[id] = time.AfterFunc(m.exitDelay, func() {
		m.remove(id)
	})
	return true
}

// DismissAll dismisses every non-exiting entry.
func (m *Manager) DismissAll() {
	for _, e := range m.Entries() {
		if !e.Exiting {
			m.Dismiss(e.ID)
		}
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	delete(m.timers, id)
	i := slices.IndexFunc(m.entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	m.notifyLocked()
}

// Entries returns a copy of the current queue, oldest first.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Close stops all timers, drops every entry and terminates subscriptions.
// A closed manager silently rejects further pushes.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.entries = nil
	for sub := range m.subscribers {
		delete(m.subscribers, sub)
		sub.close()
	}
}

func (m *Manager) ttlFor(p notification.Priority) time.Duration {
	switch p {
	case notification.PriorityUrgent:
		return 0 // sticky, dismissed explicitly or via its action
	case notification.PriorityHigh:
		return m.extendedTTL
	default:
		return m.baseTTL
	}
}
