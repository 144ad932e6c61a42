package toast

import (
	"context"
	"slices"
	"sync"
)

const defaultBufferSize = 1

// Subscription receives queue snapshots. Delivery coalesces: if a consumer
// lags, intermediate snapshots are dropped but the most recent one is always
// retained in the buffer.
type Subscription struct {
	ch     chan []Entry
	mu     sync.Mutex
	closed bool
}

// Updates returns the channel queue snapshots are delivered on. The channel
// is closed when the subscription or the manager is closed.
func (sub *Subscription) Updates() <-chan []Entry {
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

func (sub *Subscription) push(entries []Entry) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}
	for {
		select {
		case sub.ch <- entries:
			return
		default:
			select {
			case <-sub.ch:
			default:
			}
		}
	}
}

// Subscribe registers a listener for queue snapshots. The current queue is
// delivered immediately. The subscription is removed automatically when the
// supplied context is cancelled.
func (m *Manager) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{ch: make(chan []Entry, m.bufferSize)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.close()
		return sub
	}
	m.subscribers[sub] = struct{}{}
	entries := slices.Clone(m.entries)
	m.mu.Unlock()

	sub.push(entries)

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			m.unsubscribe(sub)
		}()
	}
	return sub
}

func (m *Manager) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	delete(m.subscribers, sub)
	m.mu.Unlock()
	sub.close()
}

// notifyLocked fans the current queue out to every subscriber. Pushes are
// non-blocking, so holding the manager mutex here is safe.
func (m *Manager) notifyLocked() {
	if len(m.subscribers) == 0 {
		return
	}
	entries := slices.Clone(m.entries)
	for sub := range m.subscribers {
		sub.push(entries)
	}
}
