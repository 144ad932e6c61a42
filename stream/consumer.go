package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/notifykit/notifykit/notification"
)

// State is the connection lifecycle state of a Consumer.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateBackoff    State = "backoff"
	StateClosed     State = "closed"
)

// Sink receives parsed record batches. *store.Store satisfies it.
type Sink interface {
	ApplyStreamBatch(records []notification.Record)
}

// Consumer owns exactly one long-lived push connection and feeds parsed
// record batches into its sink. Construct with New; the zero value is not
// usable.
type Consumer struct {
	transport Transport
	sink      Sink

	backoff      BackoffStrategy
	dwell        time.Duration
	retryCeiling int
	onDegraded   func(bool)
	now          func() time.Time
	logger       *slog.Logger

	mu          sync.Mutex
	state       State
	retryCount  int
	lastEventID string
	conn        Conn
	cancel      context.CancelFunc
	done        chan struct{}
	degraded    bool
}

// New constructs a stopped consumer in the Idle state.
func New(transport Transport, sink Sink, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		transport:    transport,
		sink:         sink,
		backoff:      DefaultBackoffStrategy(),
		dwell:        30 * time.Second,
		retryCeiling: 5,
		now:          time.Now,
		logger:       slog.Default(),
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start moves the consumer from Idle (or Closed) to Connecting. Calling
// Start while already Connecting, Open, or in Backoff is a no-op.
func (c *Consumer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle && c.state != StateClosed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.setStateLocked(StateConnecting)
	go c.run(ctx, c.done)
}

// Stop moves the consumer to Closed from any state, cancels any in-flight
// reconnect timer, closes the live connection if one exists, and waits for
// the run loop to exit so no handler fires afterwards. Safe to call
// repeatedly and from any state.
func (c *Consumer) Stop() {
	c.mu.Lock()
	alreadyClosed := c.state == StateClosed
	c.setStateLocked(StateClosed)
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.cancel = nil
	c.conn = nil
	c.done = nil
	c.mu.Unlock()

	if alreadyClosed && cancel == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

// State returns the current lifecycle state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryCount returns the number of reconnect attempts since the last stable
// connection.
func (c *Consumer) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// LastEventID returns the most recent resume token seen on the stream.
func (c *Consumer) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		c.mu.Lock()
		resumeFrom := c.lastEventID
		c.mu.Unlock()

		conn, err := c.transport.Connect(ctx, resumeFrom)
		if ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			c.logger.Warn("stream connect failed", "error", err)
			if !c.waitBackoff(ctx) {
				return
			}
			continue
		}

		if !c.markOpen(conn) {
			_ = conn.Close()
			return
		}
		openedAt := c.now()

		err = c.readLoop(conn)
		_ = conn.Close()
		c.clearConn()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("stream connection lost", "error", err)

		// A connection that stayed open past the dwell window counts as
		// stable, so the next outage starts the backoff ladder from the
		// bottom. Flapping connections keep climbing it.
		if c.now().Sub(openedAt) >= c.dwell {
			c.mu.Lock()
			c.retryCount = 0
			c.mu.Unlock()
		}

		if !c.waitBackoff(ctx) {
			return
		}
	}
}

// markOpen transitions Connecting -> Open and clears the degraded indicator.
func (c *Consumer) markOpen(conn Conn) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.setStateLocked(StateOpen)
	fireDegraded := c.degraded
	c.degraded = false
	hook := c.onDegraded
	c.mu.Unlock()

	if fireDegraded && hook != nil {
		hook(false)
	}
	return true
}

func (c *Consumer) clearConn() {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
}

// waitBackoff transitions into Backoff, sleeps the computed delay, then
// transitions back to Connecting. Returns false when the consumer was
// stopped while waiting.
func (c *Consumer) waitBackoff(ctx context.Context) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false
	}
	c.setStateLocked(StateBackoff)
	c.retryCount++
	attempt := c.retryCount
	var fireDegraded bool
	if c.retryCeiling > 0 && attempt > c.retryCeiling && !c.degraded {
		c.degraded = true
		fireDegraded = true
	}
	hook := c.onDegraded
	c.mu.Unlock()

	if fireDegraded && hook != nil {
		hook(true)
	}

	delay := c.backoff.NextInterval(attempt)
	c.logger.Debug("stream backoff", "attempt", attempt, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return false
	}
	c.setStateLocked(StateConnecting)
	return true
}

func (c *Consumer) readLoop(conn Conn) error {
	for {
		msg, err := conn.Receive()
		if err != nil {
			return err
		}

		if msg.ID != "" {
			c.mu.Lock()
			c.lastEventID = msg.ID
			c.mu.Unlock()
		}

		records := c.parseBatch(msg)
		if len(records) > 0 {
			c.sink.ApplyStreamBatch(records)
		}
	}
}

// parseBatch converts a message into zero or more records. Heartbeats and
// malformed payloads parse to zero; parse failures are logged and swallowed.
func (c *Consumer) parseBatch(msg Message) []notification.Record {
	if msg.Event == EventHeartbeat || len(msg.Data) == 0 {
		return nil
	}

	var batch []notification.Record
	if err := json.Unmarshal(msg.Data, &batch); err == nil {
		return batch
	}

	var single notification.Record
	if err := json.Unmarshal(msg.Data, &single); err != nil {
		c.logger.Warn("dropping malformed stream payload", "error", err)
		return nil
	}
	return []notification.Record{single}
}

func (c *Consumer) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.logger.Debug("stream state change", "from", string(c.state), "to", string(next))
	c.state = next
}
