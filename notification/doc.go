// Package notification defines the record model shared by every other
// component of the inbox synchronization engine: the Record value type,
// its closed category/priority/status sets, and the total-order
// comparators used to keep the visible list stable regardless of which
// channel delivered a record.
//
// The package is pure data. It performs no I/O and holds no state, so
// merge rules and ordering can be tested in isolation.
package notification
