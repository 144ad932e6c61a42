package toast

import (
	"time"

	"github.com/notifykit/notifykit/notification"
)

// Kind classifies the visual treatment of an entry.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Entry is a single queued notice. Entries are owned by the Manager and are
// never persisted; presentation layers receive copies.
type Entry struct {
	ID        string
	Title     string
	Body      string
	Kind      Kind
	Action    *notification.Action
	TTL       time.Duration // zero means sticky: no auto-dismiss
	CreatedAt time.Time
	Exiting   bool
}

// Sticky reports whether the entry stays until explicitly dismissed.
func (e Entry) Sticky() bool {
	return e.TTL <= 0
}

// kindFor maps a record's priority onto a visual kind. Urgent records demand
// attention, high-priority ones a softer emphasis, everything else is plain.
func kindFor(p notification.Priority) Kind {
	switch p {
	case notification.PriorityUrgent:
		return KindError
	case notification.PriorityHigh:
		return KindWarning
	default:
		return KindInfo
	}
}
