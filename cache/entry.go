package cache

import "time"

// Entry is one cached value with its expiry bookkeeping. The persisted form
// is {"data": ..., "cached_at": RFC 3339, "ttl": seconds, "expires_at":
// RFC 3339}; expires_at is derived but stored so other tools can inspect
// cache files without knowing the jitter policy.
type Entry struct {
	Data       any       `json:"data"`
	CachedAt   time.Time `json:"cached_at"`
	TTLSeconds int64     `json:"ttl"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func newEntry(data any, now time.Time, ttl time.Duration) Entry {
	return Entry{
		Data:       data,
		CachedAt:   now,
		TTLSeconds: int64(ttl / time.Second),
		ExpiresAt:  now.Add(ttl),
	}
}

// TTL returns the entry's realized time-to-live.
func (e Entry) TTL() time.Duration {
	return time.Duration(e.TTLSeconds) * time.Second
}

// Expired reports whether the entry is past its expiry at the supplied
// instant.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.expiresAt())
}

// Age returns how long the entry has been cached as of now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// Remaining returns the time until expiry as of now, never negative.
func (e Entry) Remaining(now time.Time) time.Duration {
	if r := e.expiresAt().Sub(now); r > 0 {
		return r
	}
	return 0
}

// expiresAt re-derives the deadline for documents written before expires_at
// was persisted.
func (e Entry) expiresAt() time.Time {
	if !e.ExpiresAt.IsZero() {
		return e.ExpiresAt
	}
	return e.CachedAt.Add(e.TTL())
}
