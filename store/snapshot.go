package store

import (
	"context"
	"slices"
	"sync"

	"github.com/notifykit/notifykit/notification"
)

const defaultBufferSize = 1

// Snapshot is an immutable view of the store handed to subscribers.
type Snapshot struct {
	Records     []notification.Record
	UnreadCount int
	TotalCount  int
	Loading     bool
	Degraded    bool
	Err         error
}

// Summary aggregates cached records by status and category.
type Summary struct {
	StatusCounts       map[notification.Status]int
	UnreadByCategory   map[notification.Category]int
	HighPriorityUnread int
	Total              int
}

// Subscription receives store snapshots. Delivery coalesces: if a consumer
// lags, intermediate snapshots are dropped but the most recent one is always
// retained in the buffer.
type Subscription struct {
	ch     chan Snapshot
	mu     sync.Mutex
	closed bool
}

// Updates returns the channel snapshots are delivered on. The channel is
// closed when the subscription or the store is closed.
func (sub *Subscription) Updates() <-chan Snapshot {
	return sub.ch
}

// Close terminates the subscription. Idempotent.
func (sub *Subscription) Close() {
	sub.close()
}

func (sub *Subscription) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// push delivers a snapshot without ever blocking: when the buffer is full the
// stale snapshot is evicted first.
func (sub *Subscription) push(snap Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}
	for {
		select {
		case sub.ch <- snap:
			return
		default:
			select {
			case <-sub.ch:
			default:
			}
		}
	}
}

// Subscribe registers a listener for store snapshots. The current snapshot is
// delivered immediately. The subscription is removed automatically when the
// supplied context is cancelled.
func (s *Store) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{ch: make(chan Snapshot, s.bufferSize)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.close()
		return sub
	}
	s.subscribers[sub] = struct{}{}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	sub.push(snap)

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			s.unsubscribe(sub)
		}()
	}
	return sub
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
	sub.close()
}

// Snapshot returns the current view of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Records:     slices.Clone(s.records),
		UnreadCount: s.unread,
		TotalCount:  s.total,
		Loading:     s.loading > 0,
		Degraded:    s.degraded,
		Err:         s.fetchErr,
	}
}

// notifyLocked fans the current snapshot out to every subscriber. Pushes are
// non-blocking, so holding the store mutex here is safe.
func (s *Store) notifyLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for sub := range s.subscribers {
		sub.push(snap)
	}
}
