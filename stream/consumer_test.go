package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/notification"
	"github.com/notifykit/notifykit/stream"
)

type fakeConn struct {
	msgs   chan stream.Message
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan stream.Message, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Receive() (stream.Message, error) {
	select {
	case msg := <-c.msgs:
		return msg, nil
	case <-c.closed:
		return stream.Message{}, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// drop simulates a server-initiated close.
func (c *fakeConn) drop() { _ = c.Close() }

type fakeTransport struct {
	mu           sync.Mutex
	failures     int // number of initial Connect calls that fail
	connectCalls atomic.Int32
	lastResume   string
	conns        chan *fakeConn
}

func newFakeTransport(failures int) *fakeTransport {
	return &fakeTransport{
		failures: failures,
		conns:    make(chan *fakeConn, 16),
	}
}

func (t *fakeTransport) Connect(ctx context.Context, lastEventID string) (stream.Conn, error) {
	t.connectCalls.Add(1)

	t.mu.Lock()
	t.lastResume = lastEventID
	if t.failures > 0 {
		t.failures--
		t.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	t.mu.Unlock()

	conn := newFakeConn()
	t.conns <- conn
	return conn, nil
}

func (t *fakeTransport) resume() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastResume
}

type chanSink struct {
	batches chan []notification.Record
}

func newChanSink() *chanSink {
	return &chanSink{batches: make(chan []notification.Record, 16)}
}

func (s *chanSink) ApplyStreamBatch(records []notification.Record) {
	s.batches <- records
}

func waitConn(t *testing.T, tr *fakeTransport) *fakeConn {
	t.Helper()
	select {
	case conn := <-tr.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func waitBatch(t *testing.T, sink *chanSink) []notification.Record {
	t.Helper()
	select {
	case batch := <-sink.batches:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a record batch")
		return nil
	}
}

func dataMessage(t *testing.T, id string, records ...notification.Record) stream.Message {
	t.Helper()
	payload, err := json.Marshal(records)
	require.NoError(t, err)
	return stream.Message{Event: "notifications", ID: id, Data: payload}
}

func TestConsumerDeliversBatches(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(0)
	sink := newChanSink()
	c := stream.New(tr, sink, stream.WithBackoff(stream.FixedBackoff{Interval: time.Millisecond}))
	t.Cleanup(c.Stop)

	c.Start()
	conn := waitConn(t, tr)

	conn.msgs <- dataMessage(t, "evt-1",
		notification.Record{ID: "a", Status: notification.StatusSent},
		notification.Record{ID: "b", Status: notification.StatusSent},
	)

	batch := waitBatch(t, sink)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].ID)
	assert.Equal(t, stream.StateOpen, c.State())
	assert.Equal(t, "evt-1", c.LastEventID())
}

func TestConsumerSwallowsHeartbeatsAndGarbage(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(0)
	sink := newChanSink()
	c := stream.New(tr, sink)
	t.Cleanup(c.Stop)

	c.Start()
	conn := waitConn(t, tr)

	conn.msgs <- stream.Message{Event: stream.EventHeartbeat}
	conn.msgs <- stream.Message{Data: json.RawMessage(`{{{not json`)}
	conn.msgs <- dataMessage(t, "evt-2", notification.Record{ID: "c", Status: notification.StatusSent})

	batch := waitBatch(t, sink)
	require.Len(t, batch, 1)
	assert.Equal(t, "c", batch[0].ID, "garbage and heartbeats must not kill the connection")
	assert.Equal(t, stream.StateOpen, c.State())
}

func TestConsumerStartIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(0)
	c := stream.New(tr, newChanSink())
	t.Cleanup(c.Stop)

	c.Start()
	waitConn(t, tr)
	c.Start()
	c.Start()

	// Give a doubled run loop time to manifest.
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, tr.connectCalls.Load(), "start while open must not dial again")
}

func TestConsumerReconnectsWithBackoff(t *testing.T) {
	t.Parallel()

	var degraded []bool
	var degradedMu sync.Mutex

	tr := newFakeTransport(3)
	c := stream.New(tr, newChanSink(),
		stream.WithBackoff(stream.FixedBackoff{Interval: time.Millisecond}),
		stream.WithRetryCeiling(2),
		stream.WithOnDegraded(func(d bool) {
			degradedMu.Lock()
			degraded = append(degraded, d)
			degradedMu.Unlock()
		}),
	)
	t.Cleanup(c.Stop)

	c.Start()
	waitConn(t, tr)
	require.Eventually(t, func() bool {
		return c.State() == stream.StateOpen
	}, 2*time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, tr.connectCalls.Load(), int32(4), "three failures then a success")

	degradedMu.Lock()
	defer degradedMu.Unlock()
	require.NotEmpty(t, degraded, "third attempt exceeds the ceiling of 2")
	assert.True(t, degraded[0])
	assert.False(t, degraded[len(degraded)-1], "reconnect clears the degraded indicator")
}

func TestConsumerDwellResetsRetryCount(t *testing.T) {
	t.Parallel()

	var now atomic.Pointer[time.Time]
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now.Store(&start)

	tr := newFakeTransport(2)
	c := stream.New(tr, newChanSink(),
		stream.WithBackoff(stream.FixedBackoff{Interval: time.Millisecond}),
		stream.WithDwell(30*time.Second),
		stream.WithClock(func() time.Time { return *now.Load() }),
	)
	t.Cleanup(c.Stop)

	c.Start()
	conn := waitConn(t, tr)
	require.Equal(t, 2, c.RetryCount(), "two failed attempts before the first open")

	// Stay open past the dwell window, then lose the connection. The counter
	// resets to zero before the reconnect, so the next attempt starts the
	// ladder from the bottom.
	stable := start.Add(45 * time.Second)
	now.Store(&stable)
	conn.drop()

	waitConn(t, tr)
	assert.Equal(t, 1, c.RetryCount(), "a stable connection restarts the ladder from the bottom")
}

func TestConsumerFlappingKeepsRetryCount(t *testing.T) {
	t.Parallel()

	var now atomic.Pointer[time.Time]
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now.Store(&start)

	tr := newFakeTransport(1)
	c := stream.New(tr, newChanSink(),
		stream.WithBackoff(stream.FixedBackoff{Interval: time.Millisecond}),
		stream.WithDwell(30*time.Second),
		stream.WithClock(func() time.Time { return *now.Load() }),
	)
	t.Cleanup(c.Stop)

	c.Start()
	conn := waitConn(t, tr)
	require.Equal(t, 1, c.RetryCount())

	// Drop almost immediately: dwell not met, the counter keeps climbing.
	blip := start.Add(time.Second)
	now.Store(&blip)
	conn.drop()

	waitConn(t, tr)
	assert.Equal(t, 2, c.RetryCount(), "flapping connection must not reset the ladder")
}

func TestConsumerResumesFromLastEventID(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(0)
	sink := newChanSink()
	c := stream.New(tr, sink, stream.WithBackoff(stream.FixedBackoff{Interval: time.Millisecond}))
	t.Cleanup(c.Stop)

	c.Start()
	conn := waitConn(t, tr)
	require.Empty(t, tr.resume())

	conn.msgs <- dataMessage(t, "evt-9", notification.Record{ID: "a", Status: notification.StatusSent})
	waitBatch(t, sink)
	conn.drop()

	waitConn(t, tr)
	assert.Equal(t, "evt-9", tr.resume(), "reconnect must resume from the last delivered event")
}

func TestConsumerStop(t *testing.T) {
	t.Parallel()

	t.Run("from open releases the transport", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(0)
		c := stream.New(tr, newChanSink())

		c.Start()
		conn := waitConn(t, tr)

		c.Stop()
		assert.Equal(t, stream.StateClosed, c.State())
		select {
		case <-conn.closed:
		default:
			t.Fatal("stop must close the live connection")
		}

		calls := tr.connectCalls.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, calls, tr.connectCalls.Load(), "no reconnects after stop")
	})

	t.Run("cancels an in-flight backoff timer", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(1000)
		c := stream.New(tr, newChanSink(),
			stream.WithBackoff(stream.FixedBackoff{Interval: time.Hour}))

		c.Start()
		require.Eventually(t, func() bool {
			return tr.connectCalls.Load() >= 1
		}, 2*time.Second, time.Millisecond)

		done := make(chan struct{})
		go func() {
			c.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("stop blocked on the backoff timer")
		}
		assert.Equal(t, stream.StateClosed, c.State())
	})

	t.Run("idempotent and restartable", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(0)
		c := stream.New(tr, newChanSink())

		c.Start()
		waitConn(t, tr)
		c.Stop()
		c.Stop()

		c.Start()
		waitConn(t, tr)
		assert.Equal(t, stream.StateOpen, c.State())
		c.Stop()
	})
}
