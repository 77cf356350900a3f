package session

import "time"

// Record is one session's on-disk document, stored as
// sessions/<shard>/<id>.json. Timestamps are epoch seconds — the single
// canonical representation for this store (earlier generations of these
// files disagreed between ISO strings and epoch floats; this store writes
// only the latter and migration converts the former).
type Record struct {
	Platform    string         `json:"platform"`
	SessionID   string         `json:"session_id"`
	CreatedAt   float64        `json:"created_at"`
	UpdatedAt   float64        `json:"updated_at"`
	LastActive  float64        `json:"last_active"`
	Metadata    map[string]any `json:"metadata"`
	SessionInfo map[string]any `json:"session_info,omitempty"`
}

// Age returns how long ago the record was created as of now.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(fromEpoch(r.CreatedAt))
}

// expired reports whether the record is past the retention window. Records
// without a creation time never came from this store and are treated as
// expired.
func (r Record) expired(now time.Time, retention time.Duration) bool {
	if r.CreatedAt <= 0 {
		return true
	}
	return r.Age(now) > retention
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpoch(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second))).UTC()
}
