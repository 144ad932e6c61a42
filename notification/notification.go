package notification

import (
	"strings"
	"time"
)

// Category classifies a notification by its originating domain area.
type Category string

const (
	CategoryGeneral  Category = "general"
	CategoryWorkflow Category = "workflow"
	CategoryApproval Category = "approval"
	CategoryAlert    Category = "alert"
	CategoryReminder Category = "reminder"
	CategorySystem   Category = "system"
)

// Priority represents the notification priority level.
// The levels are totally ordered; Rank exposes the order.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the position of the priority in the low < normal < high < urgent
// order. Unknown values rank as normal so malformed input never outranks
// legitimate urgent records.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// Status tracks delivery progress of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Rank returns the position of the status in the pending -> sent -> delivered
// -> read progression. Failed is terminal: it outranks every undelivered state
// but never read. Unknown values rank lowest so they never clobber real state.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusFailed:
		return 3
	case StatusRead:
		return 4
	default:
		return -1
	}
}

// Action represents a call-to-action attached to a record.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Record is one notification item in the user's inbox.
type Record struct {
	ID        string         `json:"id"`
	Category  Category       `json:"category"`
	Priority  Priority       `json:"priority"`
	Status    Status         `json:"status"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	ActionRef string         `json:"action_url,omitempty"`
	Actions   []Action       `json:"actions,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// IsRead reports whether the record has reached the read status.
func (r Record) IsRead() bool {
	return r.Status == StatusRead
}

// MarkRead advances the record to read and stamps ReadAt with the supplied time.
func (r *Record) MarkRead(now time.Time) {
	r.Status = StatusRead
	r.ReadAt = &now
}

// Supersedes reports whether an incoming copy of the same record should
// replace the cached one. The incoming copy wins if its status is strictly
// later in the delivery progression, or if it carries a ReadAt timestamp the
// cached copy lacks. Otherwise the cached (usually optimistically updated)
// copy is kept.
func (r Record) Supersedes(cached Record) bool {
	if r.Status.Rank() > cached.Status.Rank() {
		return true
	}
	return r.ReadAt != nil && cached.ReadAt == nil
}

// ByRecency orders records newest first, using the ID as a tiebreak so equal
// timestamps still produce a stable total order. The result follows the
// slices.SortFunc convention.
func ByRecency(a, b Record) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// ByPriority orders records by descending priority, falling back to ByRecency
// within the same priority level.
func ByPriority(a, b Record) int {
	if c := b.Priority.Rank() - a.Priority.Rank(); c != 0 {
		return c
	}
	return ByRecency(a, b)
}
