package store

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/notifykit/notifykit/notification"
	"github.com/notifykit/notifykit/preferences"
)

// Store is the single source of truth for the inbox. The zero value is not
// usable; construct instances with New.
type Store struct {
	mu sync.Mutex

	records []notification.Record // sorted by notification.ByRecency
	index   map[string]int        // record ID -> position in records
	unread  int
	total   int // server-reported total, from the most recent page fetch

	// pending holds the pre-flip status of records changed by an optimistic
	// mark-read that has not been confirmed yet. An entry disappears as soon
	// as the RPC confirms it or a merge independently advances the record to
	// read, so a rollback can never regress past an independently reached
	// status.
	pending map[string]notification.Status

	// pageGens maps a page number to the generation of its most recent load.
	// Generations are globally unique and never reused, so a fetch superseded
	// by a newer request (or by a reset) can never apply its stale result.
	pageGens map[int]uint64
	nextGen  uint64

	loading  int
	fetchErr error
	degraded bool

	prefs preferences.Preferences

	subscribers map[*Subscription]struct{}
	closed      bool

	onNewRecord func(notification.Record)
	bufferSize  int
	now         func() time.Time
	logger      *slog.Logger
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index:       make(map[string]int),
		pending:     make(map[string]notification.Status),
		pageGens:    make(map[int]uint64),
		prefs:       preferences.Default(),
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  defaultBufferSize,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginPageLoad registers an in-flight fetch for the given page and returns
// its generation token. A later BeginPageLoad for the same page supersedes
// the token, making the earlier response a no-op when it finally lands.
func (s *Store) BeginPageLoad(page int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGen++
	gen := s.nextGen
	s.pageGens[page] = gen
	s.loading++
	s.notifyLocked()
	return gen
}

// CompletePageLoad applies the outcome of a page fetch. Stale generations are
// discarded and reported as false. A failed fetch leaves the cached records
// untouched and only raises the error flag, so a flaky refresh never empties
// the visible list.
func (s *Store) CompletePageLoad(page int, gen uint64, records []notification.Record, totalCount int, err error) bool {
	s.mu.Lock()

	if s.closed || s.pageGens[page] != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded page load", "page", page, "generation", gen)
		return false
	}
	delete(s.pageGens, page)
	if s.loading > 0 {
		s.loading--
	}

	if err != nil {
		s.fetchErr = err
		s.notifyLocked()
		s.mu.Unlock()
		return false
	}

	s.fetchErr = nil
	s.total = totalCount
	s.mergePageLocked(records, page == 1)
	s.notifyLocked()
	s.mu.Unlock()
	return true
}

// MergePage merges a fetched page without generation bookkeeping. It exists
// for callers that manage their own request lifecycle; CompletePageLoad is
// the usual entry point.
func (s *Store) MergePage(records []notification.Record, isFirstPage bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.mergePageLocked(records, isFirstPage)
	s.notifyLocked()
}

func (s *Store) mergePageLocked(records []notification.Record, isFirstPage bool) {
	if isFirstPage {
		// Page one is authoritative for the visible list: the result is
		// exactly the returned set, newest first. Per-record conflicts are
		// still resolved against the cached copies so an optimistic or
		// stream-confirmed read is never lost.
		merged := make([]notification.Record, 0, len(records))
		seen := make(map[string]struct{}, len(records))
		for _, incoming := range records {
			if incoming.ID == "" {
				continue
			}
			if _, dup := seen[incoming.ID]; dup {
				continue
			}
			seen[incoming.ID] = struct{}{}
			s.observePendingLocked(incoming)
			if pos, ok := s.index[incoming.ID]; ok && !incoming.Supersedes(s.records[pos]) {
				merged = append(merged, s.records[pos])
			} else {
				merged = append(merged, incoming)
			}
		}
		slices.SortFunc(merged, notification.ByRecency)

		s.records = merged
		s.reindexLocked(0)
		for id := range s.pending {
			if _, ok := s.index[id]; !ok {
				delete(s.pending, id)
			}
		}
		// Bulk replace: counter correctness cannot be proven cheaply, recount.
		s.recountLocked()
		return
	}

	for _, incoming := range records {
		s.mergeOneLocked(incoming)
	}
}

// ApplyStreamBatch merges a batch of server-pushed records. Unlike a page
// fetch the batch carries no ordering authority: each new record is spliced
// into the sorted sequence at its ByRecency position, so the final order is
// independent of transport delivery order.
func (s *Store) ApplyStreamBatch(records []notification.Record) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	var fresh []notification.Record
	for _, incoming := range records {
		if inserted := s.mergeOneLocked(incoming); inserted {
			fresh = append(fresh, incoming)
		}
	}
	s.notifyLocked()
	hook := s.onNewRecord
	s.mu.Unlock()

	// The hook runs outside the lock so a toast manager (or any other
	// derived surface) can read back from the store without deadlocking.
	if hook != nil {
		for _, rec := range fresh {
			hook(rec)
		}
	}
}

// observePendingLocked folds an incoming copy into the rollback bookkeeping:
// a read copy settles the optimistic flip outright, and any copy that ranks
// above the recorded pre-flip status raises the rollback floor, so a failed
// mark-read can never regress the record below a status another source
// already reached.
func (s *Store) observePendingLocked(incoming notification.Record) {
	if incoming.IsRead() {
		delete(s.pending, incoming.ID)
		return
	}
	if prior, ok := s.pending[incoming.ID]; ok && incoming.Status.Rank() > prior.Rank() {
		s.pending[incoming.ID] = incoming.Status
	}
}

// mergeOneLocked merges a single record and reports whether it was a new
// insertion (as opposed to an update or a no-op).
func (s *Store) mergeOneLocked(incoming notification.Record) bool {
	if incoming.ID == "" {
		return false
	}

	if pos, ok := s.index[incoming.ID]; ok {
		cached := s.records[pos]
		s.observePendingLocked(incoming)
		if !incoming.Supersedes(cached) {
			return false
		}
		if !cached.IsRead() && incoming.IsRead() {
			s.unread--
		}
		s.records[pos] = incoming
		return false
	}

	pos, _ := slices.BinarySearchFunc(s.records, incoming, notification.ByRecency)
	s.records = slices.Insert(s.records, pos, incoming)
	s.reindexLocked(pos)
	if !incoming.IsRead() {
		s.unread++
	}
	return true
}

// OptimisticMarkRead flips the given records to read locally, before the
// network call resolves, and returns the IDs that actually changed. The
// caller passes that slice to ConfirmMarkRead or RollbackMarkRead once the
// RPC settles.
func (s *Store) OptimisticMarkRead(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	now := s.now()
	var flipped []string
	for _, id := range ids {
		pos, ok := s.index[id]
		if !ok || s.records[pos].IsRead() {
			continue
		}
		s.pending[id] = s.records[pos].Status
		s.records[pos].MarkRead(now)
		s.unread--
		flipped = append(flipped, id)
	}
	if len(flipped) > 0 {
		s.notifyLocked()
	}
	return flipped
}

// OptimisticMarkAllRead flips every unread record to read and returns the
// affected IDs, for the same confirm-or-rollback contract as
// OptimisticMarkRead.
func (s *Store) OptimisticMarkAllRead() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	now := s.now()
	var flipped []string
	for i := range s.records {
		if s.records[i].IsRead() {
			continue
		}
		s.pending[s.records[i].ID] = s.records[i].Status
		s.records[i].MarkRead(now)
		flipped = append(flipped, s.records[i].ID)
	}
	s.unread = 0
	if len(flipped) > 0 {
		s.notifyLocked()
	}
	return flipped
}

// ConfirmMarkRead settles the optimistic flips for the given IDs after the
// server acknowledged them.
func (s *Store) ConfirmMarkRead(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.pending, id)
	}
}

// RollbackMarkRead restores the pre-flip status for the given IDs after a
// failed mark-read call. Records that were independently confirmed read in
// the interim (their pending entry was cleared by a merge) are left alone.
func (s *Store) RollbackMarkRead(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	changed := false
	for _, id := range ids {
		prior, ok := s.pending[id]
		if !ok {
			continue
		}
		delete(s.pending, id)
		pos, ok := s.index[id]
		if !ok {
			continue
		}
		s.records[pos].Status = prior
		s.records[pos].ReadAt = nil
		if prior != notification.StatusRead {
			s.unread++
		}
		changed = true
	}
	if changed {
		s.notifyLocked()
	}
}

// RecountUnread recomputes the counter with a full scan. Used after bulk
// operations whose counter effect cannot be derived incrementally.
func (s *Store) RecountUnread() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.unread
	s.recountLocked()
	if s.unread != prev {
		s.notifyLocked()
	}
}

func (s *Store) recountLocked() {
	n := 0
	for i := range s.records {
		if !s.records[i].IsRead() {
			n++
		}
	}
	s.unread = n
}

func (s *Store) reindexLocked(from int) {
	if from == 0 {
		s.index = make(map[string]int, len(s.records))
	}
	for i := from; i < len(s.records); i++ {
		s.index[s.records[i].ID] = i
	}
}

// UnreadCount returns the incrementally maintained unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Records returns a copy of the visible list, newest first.
func (s *Store) Records() []notification.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Get returns the cached copy of a record by ID.
func (s *Store) Get(id string) (notification.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return notification.Record{}, false
	}
	return s.records[pos], true
}

// Preferences returns the last-known-good preferences snapshot.
func (s *Store) Preferences() preferences.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// SetPreferences replaces the cached preferences snapshot. Callers keep the
// previous value and restore it on a failed save.
func (s *Store) SetPreferences(p preferences.Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.prefs = p.Clone()
}

// SetDegraded raises or clears the "live updates paused" indicator driven by
// the stream consumer's retry ceiling.
func (s *Store) SetDegraded(degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.degraded == degraded {
		return
	}
	s.degraded = degraded
	s.notifyLocked()
}

// ClearError dismisses the fetch error banner state.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchErr == nil {
		return
	}
	s.fetchErr = nil
	s.notifyLocked()
}

// Summary aggregates the cached records for badge and overview surfaces.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		StatusCounts:     make(map[notification.Status]int),
		UnreadByCategory: make(map[notification.Category]int),
		Total:            len(s.records),
	}
	for i := range s.records {
		rec := &s.records[i]
		sum.StatusCounts[rec.Status]++
		if rec.IsRead() {
			continue
		}
		sum.UnreadByCategory[rec.Category]++
		if rec.Priority.Rank() >= notification.PriorityHigh.Rank() {
			sum.HighPriorityUnread++
		}
	}
	return sum
}

// Reset clears all state. Used on logout; safe to call repeatedly. In-flight
// fetch results become stale by construction because their generation tokens
// are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]int)
	s.pending = make(map[string]notification.Status)
	s.pageGens = make(map[int]uint64)
	s.unread = 0
	s.total = 0
	s.loading = 0
	s.fetchErr = nil
	s.degraded = false
	s.prefs = preferences.Default()
	s.notifyLocked()
}

// Close resets the store and closes all subscriptions. Further mutations are
// rejected. Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subscribers {
		sub.close()
	}
	clear(s.subscribers)
}
