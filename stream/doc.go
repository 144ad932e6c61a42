// Package stream owns the single long-lived push connection that keeps the
// inbox current without polling. A Consumer drives an explicit state machine
// (Idle, Connecting, Open, Backoff, Closed), converts transport messages into
// record batches for the store, and reconnects with capped exponential
// backoff and jitter.
//
// The transport is abstract: anything that can produce an ordered sequence
// of messages with close/error signalling can back a Consumer. A WebSocket
// implementation is provided.
//
// Invariants: at most one connection attempt and at most one live transport
// exist at any time; Start while Connecting or Open is a no-op; Stop is safe
// from any state and releases the transport deterministically, including an
// in-flight reconnect timer. A malformed message is logged and skipped, never
// fatal to the connection.
package stream
