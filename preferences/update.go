package preferences

import "github.com/notifykit/notifykit/notification"

// Update carries a partial preferences change for a save operation. Only the
// populated fields are applied; map entries are merged key by key so toggling
// one channel does not clobber the rest.
type Update struct {
	Channels   map[Channel]bool                           `json:"channels,omitempty"`
	QuietHours *QuietHours                                `json:"quiet_hours,omitempty"`
	Digest     *DigestFrequency                           `json:"digest,omitempty"`
	Matrix     map[notification.Category]map[Channel]bool `json:"matrix,omitempty"`
}

// Apply merges an update onto a preferences snapshot and returns the result.
// The input snapshot is not mutated; callers keep it as the rollback copy for
// a failed save.
func Apply(p Preferences, u Update) Preferences {
	out := p.Clone()

	if len(u.Channels) > 0 {
		if out.Channels == nil {
			out.Channels = make(map[Channel]bool, len(u.Channels))
		}
		for ch, v := range u.Channels {
			out.Channels[ch] = v
		}
	}
	if u.QuietHours != nil {
		out.QuietHours = *u.QuietHours
	}
	if u.Digest != nil {
		out.Digest = *u.Digest
	}
	if len(u.Matrix) > 0 {
		if out.Matrix == nil {
			out.Matrix = make(map[notification.Category]map[Channel]bool, len(u.Matrix))
		}
		for cat, row := range u.Matrix {
			if out.Matrix[cat] == nil {
				out.Matrix[cat] = make(map[Channel]bool, len(row))
			}
			for ch, v := range row {
				out.Matrix[cat][ch] = v
			}
		}
	}
	return out
}
