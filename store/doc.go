// Package store implements the canonical client-side cache of a user's
// notification inbox: a deduplicated, recency-ordered record list, an
// incrementally maintained unread counter, and the last-known-good
// preferences snapshot.
//
// Every mutation, whether it originates from a paginated fetch, a stream
// batch, or a local optimistic mark-read, is funneled through the store's
// single mutex-guarded merge path and runs to completion before returning.
// Two async completions that land "simultaneously" therefore always observe
// and produce one serialized history. No lock is ever held across a blocking
// call; the store never performs I/O itself.
//
// Subscribers receive immutable Snapshot values over buffered channels with
// coalescing semantics (intermediate snapshots may be skipped, the latest is
// never lost). Because delivery is channel-based, a misbehaving listener
// cannot stall or poison the others.
//
// Ordering guarantee: the relative position of two records in the visible
// list is a pure function of their CreatedAt/ID, independent of which channel
// delivered them or in what order those deliveries completed.
package store
