package cache

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"pkt.systems/pslog"

	"github.com/DrayChou/gaccode-statusline/clock"
	"github.com/DrayChou/gaccode-statusline/lockfile"
)

// FallbackTTL is used for namespaces outside the static TTL table.
const FallbackTTL = 5 * time.Minute

// jitterFloor is the minimum realized TTL after jitter.
const jitterFloor = time.Minute

// namespaceTTL maps each logical cache category to its default TTL.
var namespaceTTL = map[string]time.Duration{
	"balance":      5 * time.Minute,
	"subscription": time.Hour,
	"usage":        10 * time.Minute,
	"session":      24 * time.Hour,
	"config":       30 * time.Minute,
	"fast":         time.Minute,
	"slow":         2 * time.Hour,
	"persistent":   7 * 24 * time.Hour,
}

type config struct {
	clk         clock.Clock
	logger      pslog.Logger
	lockTimeout time.Duration
	fallbackTTL time.Duration
}

// Option configures a Store.
type Option func(*config)

// WithClock overrides the clock used for expiry decisions. Defaults to the
// real clock.
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clk = clk }
}

// WithLogger attaches a logger. Defaults to a disabled logger.
func WithLogger(l pslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithLockTimeout overrides the per-document lock deadline for the disk
// tier. Defaults to lockfile.DefaultTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(c *config) { c.lockTimeout = d }
}

// WithFallbackTTL overrides the TTL used for namespaces outside the static
// table. Defaults to FallbackTTL.
func WithFallbackTTL(d time.Duration) Option {
	return func(c *config) { c.fallbackTTL = d }
}

// Store is a two-tier cache rooted at one directory. The in-process tier is
// process-wide mutable state; construct one Store per directory and share it
// (or use [Default]).
type Store struct {
	dir string
	cfg config

	mu  sync.Mutex
	mem map[string]Entry
}

// New returns a Store rooted at dir. The directory is created on first
// write, not here, so constructing a Store is always cheap and infallible.
func New(dir string, opts ...Option) *Store {
	cfg := config{
		clk:         clock.Real{},
		logger:      pslog.NoopLogger(),
		lockTimeout: lockfile.DefaultTimeout,
		fallbackTTL: FallbackTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{
		dir: dir,
		cfg: cfg,
		mem: make(map[string]Entry),
	}
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns the process-wide Store rooted at [DefaultDir],
// constructed once on first use.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = New(DefaultDir())
	})
	return defaultStore
}

// DefaultDir returns the default cache directory under the user cache root.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "gaccode-statusline", "cache")
}

// Get returns the live entry for (namespace, key, params), checking the
// in-process tier first and falling through to disk. A disk hit is promoted
// into the in-process tier. Expired entries are removed and reported as
// misses, as is anything the disk tier fails to produce.
func (s *Store) Get(namespace, key string, params map[string]any) (Entry, bool) {
	ck := deriveKey(namespace, key, params)
	now := s.cfg.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.mem[ck]; ok {
		if !entry.Expired(now) {
			return entry, true
		}
		delete(s.mem, ck)
	}

	path := s.entryPath(ck)
	var entry Entry
	found, err := lockfile.Read(path, &entry,
		lockfile.WithTimeout(s.cfg.lockTimeout), lockfile.WithLogger(s.cfg.logger))
	if err != nil || !found {
		if _, statErr := os.Stat(path); statErr == nil && err == nil {
			// Exists but did not parse; replaced wholesale on next Set.
			os.Remove(path)
		}
		return Entry{}, false
	}
	if entry.Expired(now) {
		os.Remove(path)
		return Entry{}, false
	}

	s.mem[ck] = entry
	return entry, true
}

// Set stores data under (namespace, key, params) in both tiers. A zero or
// negative ttl resolves from the namespace table; the realized TTL always
// carries ±10% jitter with a 60s floor. The returned bool reports whether
// the disk tier accepted the entry; the in-process tier is updated
// regardless.
func (s *Store) Set(namespace, key string, data any, ttl time.Duration, params map[string]any) bool {
	ck := deriveKey(namespace, key, params)
	if ttl <= 0 {
		ttl = s.namespaceTTL(namespace)
	}
	ttl = jittered(ttl)
	entry := newEntry(data, s.cfg.clk.Now(), ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem[ck] = entry

	if err := lockfile.Write(s.entryPath(ck), entry,
		lockfile.WithTimeout(s.cfg.lockTimeout), lockfile.WithLogger(s.cfg.logger)); err != nil {
		s.cfg.logger.Warn("cache.set.disk_failed",
			"key", ck, "error", err)
		return false
	}
	return true
}

// Delete removes the entry from both tiers. It reports false only when the
// disk tier had a file it could not remove.
func (s *Store) Delete(namespace, key string, params map[string]any) bool {
	ck := deriveKey(namespace, key, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.mem, ck)

	path := s.entryPath(ck)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.cfg.logger.Warn("cache.delete.disk_failed", "key", ck, "error", err)
		return false
	}
	return true
}

// ClearNamespace removes every entry in the namespace from both tiers and
// returns the number of entries removed (an entry present in both tiers
// counts once per tier, matching what actually got deleted).
func (s *Store) ClearNamespace(namespace string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	prefix := namespace + ":"
	for ck := range s.mem {
		if strings.HasPrefix(ck, prefix) {
			delete(s.mem, ck)
			cleared++
		}
	}

	pattern := filepath.Join(s.dir, "cache_"+sanitize(namespace)+"_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		s.cfg.logger.Warn("cache.clear_namespace.glob_failed", "namespace", namespace, "error", err)
		return cleared
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			s.cfg.logger.Warn("cache.clear_namespace.remove_failed", "path", path, "error", err)
			continue
		}
		cleared++
	}

	s.cfg.logger.Info("cache.clear_namespace", "namespace", namespace, "cleared", cleared)
	return cleared
}

// CleanupExpired eagerly sweeps both tiers, removing expired entries and any
// disk entry that fails to parse. It returns the number of entries removed.
func (s *Store) CleanupExpired() int {
	now := s.cfg.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for ck, entry := range s.mem {
		if entry.Expired(now) {
			delete(s.mem, ck)
			cleaned++
		}
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "cache_*.json"))
	if err != nil {
		return cleaned
	}
	for _, path := range matches {
		var entry Entry
		found, err := lockfile.Read(path, &entry,
			lockfile.WithTimeout(s.cfg.lockTimeout), lockfile.WithLogger(s.cfg.logger))
		switch {
		case err != nil:
			// Lock contention; leave for the next sweep.
		case !found:
			// Exists in the glob but unreadable or unparseable.
			if os.Remove(path) == nil {
				cleaned++
			}
		case entry.Expired(now):
			if os.Remove(path) == nil {
				cleaned++
			}
		}
	}

	if cleaned > 0 {
		s.cfg.logger.Info("cache.cleanup_expired", "cleaned", cleaned)
	}
	return cleaned
}

// Stats summarizes both tiers.
type Stats struct {
	MemoryEntries int            `json:"memory_entries"`
	DiskEntries   int            `json:"disk_entries"`
	Namespaces    map[string]int `json:"namespaces"`
	Dir           string         `json:"dir"`
}

// Stats reports entry counts per tier and per namespace (namespace tallies
// cover the in-process tier only; the disk tier is counted, not parsed).
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		MemoryEntries: len(s.mem),
		Namespaces:    make(map[string]int),
		Dir:           s.dir,
	}
	for ck := range s.mem {
		ns, _, _ := strings.Cut(ck, ":")
		stats.Namespaces[ns]++
	}
	if matches, err := filepath.Glob(filepath.Join(s.dir, "cache_*.json")); err == nil {
		stats.DiskEntries = len(matches)
	}
	return stats
}

func (s *Store) namespaceTTL(namespace string) time.Duration {
	if ttl, ok := namespaceTTL[namespace]; ok {
		return ttl
	}
	return s.cfg.fallbackTTL
}

// deriveKey builds "ns:key" or "ns:key:hash8". Params are canonicalized via
// JSON (map keys sorted, compact) so insertion order never changes the slot.
func deriveKey(namespace, key string, params map[string]any) string {
	if len(params) == 0 {
		return namespace + ":" + key
	}
	canonical, err := json.Marshal(params)
	if err != nil {
		// Unserializable params still deserve a stable slot.
		canonical = fmt.Appendf(nil, "%v", params)
	}
	sum := xxhash.Sum64(canonical)
	return fmt.Sprintf("%s:%s:%s", namespace, key, fmt.Sprintf("%016x", sum)[:8])
}

var sanitizer = strings.NewReplacer(":", "_", "/", "_")

func sanitize(s string) string { return sanitizer.Replace(s) }

func (s *Store) entryPath(cacheKey string) string {
	return filepath.Join(s.dir, "cache_"+sanitize(cacheKey)+".json")
}

// jittered applies ±10% whole-second jitter to base with a 60s floor, so
// entries seeded together do not expire together.
func jittered(base time.Duration) time.Duration {
	jr := int64(base/time.Second) / 10
	if jr > 0 {
		delta := rand.Int64N(2*jr+1) - jr
		base += time.Duration(delta) * time.Second
	}
	if base < jitterFloor {
		base = jitterFloor
	}
	return base
}
