package session

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/DrayChou/gaccode-statusline/lockfile"
	"github.com/DrayChou/gaccode-statusline/platform"
)

// legacyFile is the retired single-file mapping layout: one JSON document
// holding every session.
type legacyFile struct {
	Sessions map[string]legacyRecord `json:"sessions"`
}

// legacyRecord tolerates the field spellings and timestamp representations
// that accumulated in the flat store over time: created_at as epoch seconds
// or ISO-8601, created_time as ISO-8601.
type legacyRecord struct {
	Platform    string         `json:"platform"`
	CreatedAt   any            `json:"created_at"`
	CreatedTime any            `json:"created_time"`
	Metadata    map[string]any `json:"metadata"`
}

// MigrateFlatFile reads the retired flat mapping file once, populates the
// sharded store from it, and renames the file to "<path>.migrated" so the
// old layout can never be consulted again. Sessions that already exist in
// the sharded store are left alone (the sharded record is newer by
// construction). It returns the number of sessions migrated.
func (r *Registry) MigrateFlatFile(path string) (int, error) {
	var flat legacyFile
	found, err := lockfile.Read(path, &flat, r.lockOpts()...)
	if err != nil {
		return 0, err
	}
	if !found {
		// Missing or unparseable: either way the flat layout is done.
		if removeErr := os.Rename(path, path+".migrated"); removeErr != nil && !os.IsNotExist(removeErr) {
			return 0, errors.Wrapf(removeErr, "session: retire flat mapping %s", path)
		}
		return 0, nil
	}

	now := r.cfg.clk.Now()
	migrated := 0
	for id, legacy := range flat.Sessions {
		if id == "" {
			continue
		}
		p, known := platform.Parse(legacy.Platform)
		if !known {
			r.cfg.logger.Debug("session.migrate.skip_unknown_platform",
				"session_id", abbreviate(id), "platform", legacy.Platform)
			continue
		}
		if _, statErr := os.Stat(r.sessionPath(id)); statErr == nil {
			continue
		}
		created := legacyTimestamp(legacy.CreatedAt, legacy.CreatedTime, now)
		rec := Record{
			Platform:   string(p),
			SessionID:  id,
			CreatedAt:  created,
			UpdatedAt:  epoch(now),
			LastActive: epoch(now),
			Metadata:   legacy.Metadata,
		}
		if rec.Metadata == nil {
			rec.Metadata = map[string]any{}
		}
		if rec.expired(now, r.cfg.retention) {
			continue
		}
		if err := lockfile.Write(r.sessionPath(id), rec, r.lockOpts()...); err != nil {
			r.cfg.logger.Warn("session.migrate.write_failed",
				"session_id", abbreviate(id), "error", err)
			continue
		}
		migrated++
	}

	if err := os.Rename(path, path+".migrated"); err != nil {
		return migrated, errors.Wrapf(err, "session: retire flat mapping %s", path)
	}
	return migrated, nil
}

// legacyTimestamp resolves a creation time from whichever representation
// the flat record carried, falling back to now.
func legacyTimestamp(createdAt, createdTime any, now time.Time) float64 {
	for _, v := range []any{createdAt, createdTime} {
		switch t := v.(type) {
		case float64:
			if t > 0 {
				return t
			}
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return epoch(parsed)
			}
			// ISO strings from the Python store lack a zone suffix.
			if parsed, err := time.Parse("2006-01-02T15:04:05.999999", t); err == nil {
				return epoch(parsed)
			}
		}
	}
	return epoch(now)
}
