// Package session maintains the sharded on-disk registry mapping session
// identifiers to backend platforms.
//
// Each session lives in its own JSON document at
// "sessions/<first-two-chars-lowercased>/<id>.json", so a point lookup is a
// pure path computation and per-directory fan-out stays bounded. Mapping an
// identifier to a platform resolves in order: exact registry lookup, then —
// for prefixed identifiers — the embedded platform tag, then
// [platform.Unknown]. Records expire once their age exceeds a retention
// window (default 7 days), lazily on read and eagerly via
// [Registry.CleanupExpiredSessions].
package session

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"pkt.systems/pslog"

	"github.com/DrayChou/gaccode-statusline/clock"
	"github.com/DrayChou/gaccode-statusline/lockfile"
	"github.com/DrayChou/gaccode-statusline/platform"
)

// DefaultRetention is the retention window for session records.
const DefaultRetention = 7 * 24 * time.Hour

// legacyMappingFile is the retired single-file mapping store; see
// [Registry.MigrateFlatFile].
const legacyMappingFile = "session-mappings.json"

type config struct {
	clk         clock.Clock
	logger      pslog.Logger
	lockTimeout time.Duration
	retention   time.Duration
}

// Option configures a Registry.
type Option func(*config)

// WithClock overrides the clock used for retention decisions.
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clk = clk }
}

// WithLogger attaches a logger. Defaults to a disabled logger.
func WithLogger(l pslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithLockTimeout overrides the per-document lock deadline.
func WithLockTimeout(d time.Duration) Option {
	return func(c *config) { c.lockTimeout = d }
}

// WithRetention overrides the retention window. Defaults to
// DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(c *config) { c.retention = d }
}

// Registry is the sharded session-to-platform store rooted at
// "<cacheDir>/sessions".
type Registry struct {
	dir    string
	legacy string
	cfg    config
}

// New returns a Registry under cacheDir. If the retired flat mapping file
// exists there, its records are migrated into the sharded layout once and
// the file is renamed aside, permanently.
func New(cacheDir string, opts ...Option) *Registry {
	cfg := config{
		clk:         clock.Real{},
		logger:      pslog.NoopLogger(),
		lockTimeout: lockfile.DefaultTimeout,
		retention:   DefaultRetention,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Registry{
		dir:    filepath.Join(cacheDir, "sessions"),
		legacy: filepath.Join(cacheDir, legacyMappingFile),
		cfg:    cfg,
	}
	if _, err := os.Stat(r.legacy); err == nil {
		if n, err := r.MigrateFlatFile(r.legacy); err != nil {
			cfg.logger.Warn("session.migrate.failed", "path", r.legacy, "error", err)
		} else if n > 0 {
			cfg.logger.Info("session.migrate.done", "path", r.legacy, "migrated", n)
		}
	}
	return r
}

// shard returns the directory name for an identifier: its first two
// characters lowercased, or "00" for identifiers too short to shard.
func shard(id string) string {
	if len(id) >= 2 {
		return strings.ToLower(id[:2])
	}
	return "00"
}

func (r *Registry) sessionPath(id string) string {
	return filepath.Join(r.dir, shard(id), id+".json")
}

// SetSessionPlatform records that id belongs to p. An existing record keeps
// its created_at; updated_at and last_active always refresh. The metadata
// map replaces any previous one (nil becomes empty). Unknown platforms are
// rejected.
func (r *Registry) SetSessionPlatform(id string, p platform.Platform, metadata map[string]any) bool {
	if id == "" {
		return false
	}
	if !p.Known() {
		r.cfg.logger.Warn("session.set.unknown_platform", "session_id", abbreviate(id), "platform", p)
		return false
	}
	now := epoch(r.cfg.clk.Now())
	err := lockfile.Update(r.sessionPath(id), func(cur Record, found bool) (Record, bool, error) {
		created := now
		if found && cur.CreatedAt > 0 {
			created = cur.CreatedAt
		}
		next := Record{
			Platform:   string(p),
			SessionID:  id,
			CreatedAt:  created,
			UpdatedAt:  now,
			LastActive: now,
			Metadata:   metadata,
		}
		if next.Metadata == nil {
			next.Metadata = map[string]any{}
		}
		return next, true, nil
	}, r.lockOpts()...)
	if err != nil {
		r.cfg.logger.Error("session.set.failed",
			"session_id", abbreviate(id), "platform", p, "error", err)
		return false
	}
	r.cfg.logger.Debug("session.set",
		"session_id", abbreviate(id), "platform", p)
	return true
}

// GetSessionPlatform resolves id to its platform. Resolution order: exact
// registry lookup (which lazily drops an expired record), then the embedded
// tag for prefixed identifiers, then [platform.Unknown]. It never fails;
// callers fall back to their configured default platform on Unknown.
func (r *Registry) GetSessionPlatform(id string) platform.Platform {
	if rec, ok := r.lookup(id); ok {
		if p, known := platform.Parse(rec.Platform); known {
			return p
		}
	}
	if p, ok := platform.DecodeSessionID(id); ok {
		return p
	}
	return platform.Unknown
}

// Lookup returns the live record for id, if one exists. An expired record
// is removed on the spot and reported as absent.
func (r *Registry) Lookup(id string) (Record, bool) {
	return r.lookup(id)
}

func (r *Registry) lookup(id string) (Record, bool) {
	if id == "" {
		return Record{}, false
	}
	path := r.sessionPath(id)
	var rec Record
	found, err := lockfile.Read(path, &rec, r.lockOpts()...)
	if err != nil || !found {
		return Record{}, false
	}
	if rec.expired(r.cfg.clk.Now(), r.cfg.retention) {
		os.Remove(path)
		r.cfg.logger.Info("session.lookup.expired",
			"session_id", abbreviate(id), "age", rec.Age(r.cfg.clk.Now()))
		return Record{}, false
	}
	return rec, true
}

// UpdateSessionInfo attaches a full session snapshot to id's record. It
// requires either an existing record or an explicit platform; it will not
// materialize a record for an unspecified platform. Pass p as the empty
// string to mean "keep whatever the record says".
func (r *Registry) UpdateSessionInfo(id string, info map[string]any, p platform.Platform) bool {
	if id == "" {
		return false
	}
	if p != "" && !p.Known() {
		r.cfg.logger.Warn("session.update_info.unknown_platform", "session_id", abbreviate(id), "platform", p)
		return false
	}
	now := epoch(r.cfg.clk.Now())
	err := lockfile.Update(r.sessionPath(id), func(cur Record, found bool) (Record, bool, error) {
		if !found && p == "" {
			return cur, false, errors.New("session: cannot update info without a platform for a new session")
		}
		plat := string(p)
		if plat == "" {
			plat = cur.Platform
		}
		created := now
		if found && cur.CreatedAt > 0 {
			created = cur.CreatedAt
		}
		next := Record{
			Platform:    plat,
			SessionID:   id,
			CreatedAt:   created,
			UpdatedAt:   now,
			LastActive:  now,
			Metadata:    cur.Metadata,
			SessionInfo: info,
		}
		if next.Metadata == nil {
			next.Metadata = map[string]any{}
		}
		return next, true, nil
	}, r.lockOpts()...)
	if err != nil {
		r.cfg.logger.Warn("session.update_info.failed",
			"session_id", abbreviate(id), "error", err)
		return false
	}
	return true
}

// DeleteSession removes id's record. It reports whether a record existed
// and was removed.
func (r *Registry) DeleteSession(id string) bool {
	path := r.sessionPath(id)
	err := os.Remove(path)
	os.Remove(path + ".lock")
	if err != nil {
		if !os.IsNotExist(err) {
			r.cfg.logger.Warn("session.delete.failed", "session_id", abbreviate(id), "error", err)
		}
		return false
	}
	return true
}

// RegisterDual generates a fresh identifier for p and registers both of its
// forms — prefixed and standard — so either resolves to p. Both writes must
// land for ok to be true.
func (r *Registry) RegisterDual(p platform.Platform, metadata map[string]any) (prefixed, standard string, ok bool) {
	prefixed, standard, err := platform.NewSessionPair(p)
	if err != nil {
		r.cfg.logger.Warn("session.register_dual.failed", "platform", p, "error", err)
		return "", "", false
	}
	ok = r.SetSessionPlatform(prefixed, p, metadata)
	ok = r.SetSessionPlatform(standard, p, metadata) && ok
	return prefixed, standard, ok
}

// LastSession returns p's most recently active record, scanning only p's
// id-prefix shard (where tagged identifiers for p land).
func (r *Registry) LastSession(p platform.Platform) (Record, bool) {
	id, okID := p.ID()
	if !okID {
		return Record{}, false
	}
	shardDir := filepath.Join(r.dir, id.Hex())
	entries, err := os.ReadDir(shardDir)
	if err != nil {
		return Record{}, false
	}
	var latest Record
	var found bool
	now := r.cfg.clk.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var rec Record
		ok, err := lockfile.Read(filepath.Join(shardDir, entry.Name()), &rec, r.lockOpts()...)
		if err != nil || !ok {
			continue
		}
		if rec.Platform != string(p) || rec.expired(now, r.cfg.retention) {
			continue
		}
		if !found || rec.LastActive > latest.LastActive {
			latest = rec
			found = true
		}
	}
	return latest, found
}

// ListSessions returns every live record, optionally filtered to one
// platform (pass the empty string for all). This is the one operation that
// walks the whole store.
func (r *Registry) ListSessions(p platform.Platform) map[string]Record {
	sessions := make(map[string]Record)
	now := r.cfg.clk.Now()
	r.walk(func(path string, rec Record, parsed bool) {
		if !parsed {
			return
		}
		if p != "" && rec.Platform != string(p) {
			return
		}
		if rec.expired(now, r.cfg.retention) {
			return
		}
		sessions[rec.SessionID] = rec
	})
	return sessions
}

// CleanupExpiredSessions eagerly removes every record older than ttl
// (<= 0 means the configured retention window), plus anything that fails to
// parse, then drops shard directories left empty. It returns the number of
// records removed.
func (r *Registry) CleanupExpiredSessions(ttl time.Duration) int {
	if ttl <= 0 {
		ttl = r.cfg.retention
	}
	now := r.cfg.clk.Now()
	cleaned := 0
	r.walk(func(path string, rec Record, parsed bool) {
		if parsed && !rec.expired(now, ttl) {
			return
		}
		if os.Remove(path) == nil {
			cleaned++
		}
		os.Remove(path + ".lock")
	})
	r.removeEmptyShards()
	if cleaned > 0 {
		r.cfg.logger.Info("session.cleanup", "cleaned", cleaned, "retention", ttl)
	}
	return cleaned
}

// Stats summarizes the store.
type Stats struct {
	TotalSessions   int            `json:"total_sessions"`
	ExpiredSessions int            `json:"expired_sessions"`
	ShardDirs       int            `json:"shard_dirs"`
	Platforms       map[string]int `json:"platforms"`
}

// Stats counts live and expired records per platform.
func (r *Registry) Stats() Stats {
	stats := Stats{Platforms: make(map[string]int)}
	now := r.cfg.clk.Now()
	shards, err := os.ReadDir(r.dir)
	if err != nil {
		return stats
	}
	for _, shardEntry := range shards {
		if !shardEntry.IsDir() {
			continue
		}
		stats.ShardDirs++
	}
	r.walk(func(path string, rec Record, parsed bool) {
		if !parsed || rec.expired(now, r.cfg.retention) {
			stats.ExpiredSessions++
			return
		}
		stats.TotalSessions++
		name := rec.Platform
		if _, known := platform.Parse(name); !known {
			name = string(platform.Unknown)
		}
		stats.Platforms[name]++
	})
	return stats
}

// walk visits every session document. parsed is false for documents that
// could not be read or decoded.
func (r *Registry) walk(visit func(path string, rec Record, parsed bool)) {
	shards, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	for _, shardEntry := range shards {
		if !shardEntry.IsDir() {
			continue
		}
		shardDir := filepath.Join(r.dir, shardEntry.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			path := filepath.Join(shardDir, file.Name())
			var rec Record
			ok, err := lockfile.Read(path, &rec, r.lockOpts()...)
			visit(path, rec, err == nil && ok)
		}
	}
}

func (r *Registry) removeEmptyShards() {
	shards, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	for _, shardEntry := range shards {
		if !shardEntry.IsDir() {
			continue
		}
		shardDir := filepath.Join(r.dir, shardEntry.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			continue
		}
		// Lock sidecars left behind by removed records do not make a
		// shard non-empty.
		empty := true
		for _, file := range files {
			if !strings.HasSuffix(file.Name(), ".lock") {
				empty = false
				break
			}
		}
		if !empty {
			continue
		}
		for _, file := range files {
			os.Remove(filepath.Join(shardDir, file.Name()))
		}
		os.Remove(shardDir)
	}
}

func (r *Registry) lockOpts() []lockfile.Option {
	return []lockfile.Option{
		lockfile.WithTimeout(r.cfg.lockTimeout),
		lockfile.WithLogger(r.cfg.logger),
	}
}

// abbreviate shortens identifiers for log lines.
func abbreviate(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
