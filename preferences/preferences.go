package preferences

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notifykit/notifykit/notification"
)

// Channel identifies a delivery channel a user can toggle.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// DigestFrequency controls how often non-urgent notifications are bundled.
type DigestFrequency string

const (
	DigestNone   DigestFrequency = "none"
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
)

// QuietHours defines an optional wall-clock window during which only urgent
// records surface. Start and End use the "HH:MM" 24-hour form and the window
// may wrap past midnight (e.g. 22:00 to 07:00).
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// Preferences is the per-user notification preferences singleton.
//
// Any (category, channel) pair absent from Matrix is implicitly enabled, and
// any channel absent from Channels is implicitly enabled, matching the
// server-side resolution rules.
type Preferences struct {
	Channels   map[Channel]bool                           `json:"channels"`
	QuietHours QuietHours                                 `json:"quiet_hours"`
	Digest     DigestFrequency                            `json:"digest"`
	Matrix     map[notification.Category]map[Channel]bool `json:"matrix,omitempty"`
}

// Default returns preferences with every channel enabled and no quiet hours,
// mirroring the implicit server defaults for a user who never saved any.
func Default() Preferences {
	return Preferences{
		Channels: map[Channel]bool{
			ChannelInApp: true,
			ChannelEmail: true,
			ChannelPush:  true,
			ChannelSMS:   false,
		},
		Digest: DigestNone,
	}
}

// Clone returns a deep copy so a cached last-known-good snapshot cannot be
// mutated through a shared map.
func (p Preferences) Clone() Preferences {
	out := p
	if p.Channels != nil {
		out.Channels = make(map[Channel]bool, len(p.Channels))
		for ch, v := range p.Channels {
			out.Channels[ch] = v
		}
	}
	if p.Matrix != nil {
		out.Matrix = make(map[notification.Category]map[Channel]bool, len(p.Matrix))
		for cat, row := range p.Matrix {
			cells := make(map[Channel]bool, len(row))
			for ch, v := range row {
				cells[ch] = v
			}
			out.Matrix[cat] = cells
		}
	}
	return out
}

// ChannelEnabled resolves the effective toggle for a channel and category.
// The global channel toggle is checked first; a category-specific matrix cell
// then overrides it. Absent entries default to enabled.
func ChannelEnabled(p Preferences, ch Channel, cat notification.Category) bool {
	if enabled, ok := p.Channels[ch]; ok && !enabled {
		return false
	}
	if row, ok := p.Matrix[cat]; ok {
		if cell, ok := row[ch]; ok {
			return cell
		}
	}
	return true
}

// Allows reports whether a record may surface as an in-app notice at the
// given moment. It is deterministic in its inputs: in-app disabled wholesale
// blocks everything, quiet hours block everything except urgent records, and
// otherwise the (category, in_app) matrix cell decides.
func Allows(rec notification.Record, p Preferences, now time.Time) bool {
	if enabled, ok := p.Channels[ChannelInApp]; ok && !enabled {
		return false
	}
	if p.QuietHours.Contains(now) && rec.Priority != notification.PriorityUrgent {
		return false
	}
	return ChannelEnabled(p, ChannelInApp, rec.Category)
}

// Contains reports whether the given time falls inside the quiet-hours
// window. A disabled, incomplete, or zero-length window contains nothing.
func (q QuietHours) Contains(now time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := parseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(q.End)
	if err != nil {
		return false
	}
	if start == end {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	// Window wraps past midnight.
	return minute >= start || minute < end
}

// parseClock converts "HH:MM" into minutes past midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("preferences: invalid clock value %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("preferences: invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("preferences: invalid minute in %q", s)
	}
	return h*60 + m, nil
}
