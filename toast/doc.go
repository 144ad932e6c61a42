// Package toast maintains a transient presentation queue of short-lived
// notices derived from notification records and engine events.
//
// Entries are independently timed: each auto-dismissable entry carries its
// own TTL, scaled by the priority of the record it echoes, while urgent
// entries stay on screen until explicitly dismissed. Dismissal is two-phase:
// the entry is first flagged as exiting so presentation layers can animate
// it out, then removed from the queue after a short fixed delay.
//
// The queue is a presentation echo of store writes, not a second source of
// truth. Nothing in this package is persisted.
package toast
