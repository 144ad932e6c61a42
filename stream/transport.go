package stream

import (
	"context"
	"encoding/json"
)

// Message is one inbound event from the push channel. A heartbeat carries no
// data; a data message carries a JSON payload that parses to one or more
// notification records. ID, when present, is the resume token to hand back on
// reconnect.
type Message struct {
	Event string          `json:"event,omitempty"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventHeartbeat marks keepalive messages that carry no records.
const EventHeartbeat = "heartbeat"

// Conn is a single live push connection.
type Conn interface {
	// Receive blocks until the next message arrives or the connection fails.
	// After Close, Receive returns an error promptly.
	Receive() (Message, error)

	// Close releases the connection. Idempotent.
	Close() error
}

// Transport establishes push connections. The consumer guarantees it never
// holds more than one Conn open at a time.
type Transport interface {
	// Connect opens a connection, optionally resuming after the given event
	// ID where the underlying protocol supports it.
	Connect(ctx context.Context, lastEventID string) (Conn, error)
}
