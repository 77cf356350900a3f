// Package throttle guards API endpoints against back-to-back requests from
// multiple concurrent processes.
//
// One small JSON document per (platform, endpoint) slot records the last
// permitted request time. The check and the stamp happen while holding the
// document's file lock, so two processes racing on the same slot cannot
// both be told "go ahead". On any storage or locking failure the guard
// fails open — it permits the request — because callers carry their own
// retry and backoff as a second line of defense and blocking them on a
// broken disk helps nobody.
package throttle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/DrayChou/gaccode-statusline/clock"
	"github.com/DrayChou/gaccode-statusline/lockfile"
	"github.com/DrayChou/gaccode-statusline/platform"
)

// DefaultInterval applies to platforms without a stricter entry in the
// interval table.
const DefaultInterval = 30 * time.Second

// intervals holds the per-platform minimum request spacing. GAC Code
// enforces account-level rate discipline, hence the stricter value.
var intervals = map[platform.Platform]time.Duration{
	platform.GacCode:     60 * time.Second,
	platform.DeepSeek:    30 * time.Second,
	platform.Kimi:        30 * time.Second,
	platform.SiliconFlow: 30 * time.Second,
}

// slotDoc is the persisted per-slot document. Timestamps are epoch seconds.
type slotDoc struct {
	LastRequestTime float64 `json:"last_request_time"`
	Platform        string  `json:"platform"`
	Endpoint        string  `json:"endpoint"`
	MinInterval     float64 `json:"min_interval"`
	UpdatedAt       float64 `json:"updated_at"`
}

type config struct {
	clk         clock.Clock
	logger      pslog.Logger
	lockTimeout time.Duration
	overrides   map[platform.Platform]time.Duration
}

// Option configures a Guard.
type Option func(*config)

// WithClock overrides the clock. Defaults to the real clock.
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

// WithInterval overrides the minimum request spacing for one platform.
func WithInterval(p platform.Platform, d time.Duration) Option {
	return func(c *config) {
		if c.overrides == nil {
			c.overrides = make(map[platform.Platform]time.Duration)
		}
		c.overrides[p] = d
	}
}

// Guard is the cross-process request throttle rooted at
// "<cacheDir>/api_locks".
type Guard struct {
	dir string
	cfg config
}

// New returns a Guard under cacheDir.
func New(cacheDir string, opts ...Option) *Guard {
	cfg := config{
		clk:         clock.Real{},
		logger:      pslog.NoopLogger(),
		lockTimeout: lockfile.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Guard{
		dir: filepath.Join(cacheDir, "api_locks"),
		cfg: cfg,
	}
}

// Interval returns the minimum request spacing for p.
func (g *Guard) Interval(p platform.Platform) time.Duration {
	if d, ok := g.cfg.overrides[p]; ok {
		return d
	}
	if d, ok := intervals[p]; ok {
		return d
	}
	return DefaultInterval
}

// Allow reports whether a request to (platform, endpoint) may proceed now,
// and if so stamps the slot so no other process is permitted until the
// interval elapses. The check-then-stamp runs under the slot's file lock.
// Storage or locking failures permit the request.
func (g *Guard) Allow(p platform.Platform, endpoint string) bool {
	interval := g.Interval(p)
	now := g.cfg.clk.Now()
	allowed := false

	err := lockfile.Update(g.slotPath(p, endpoint), func(cur slotDoc, found bool) (slotDoc, bool, error) {
		elapsed := epochSeconds(now) - cur.LastRequestTime
		if found && elapsed < interval.Seconds() {
			g.cfg.logger.Debug("throttle.denied",
				"platform", p, "endpoint", endpoint,
				"elapsed", elapsed, "min_interval", interval.Seconds())
			return cur, false, nil
		}
		allowed = true
		return slotDoc{
			LastRequestTime: epochSeconds(now),
			Platform:        string(p),
			Endpoint:        endpoint,
			MinInterval:     interval.Seconds(),
			UpdatedAt:       epochSeconds(now),
		}, true, nil
	}, lockfile.WithTimeout(g.cfg.lockTimeout), lockfile.WithLogger(g.cfg.logger))

	if err != nil {
		// Fail open: liveness over strict enforcement.
		g.cfg.logger.Warn("throttle.check_failed",
			"platform", p, "endpoint", endpoint, "error", err)
		return true
	}
	return allowed
}

// SlotStatus describes one throttle slot.
type SlotStatus struct {
	Platform        string  `json:"platform"`
	Endpoint        string  `json:"endpoint"`
	LastRequestTime float64 `json:"last_request_time"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	RemainingSecs   float64 `json:"remaining_seconds"`
	CanRequest      bool    `json:"can_request"`
	MinInterval     float64 `json:"min_interval"`
}

// Status reports every known slot keyed by "<platform>_<endpoint>".
func (g *Guard) Status() map[string]SlotStatus {
	out := make(map[string]SlotStatus)
	matches, err := filepath.Glob(filepath.Join(g.dir, "api_lock_*.json"))
	if err != nil {
		return out
	}
	now := epochSeconds(g.cfg.clk.Now())
	for _, path := range matches {
		var doc slotDoc
		found, err := lockfile.Read(path, &doc,
			lockfile.WithTimeout(g.cfg.lockTimeout), lockfile.WithLogger(g.cfg.logger))
		if err != nil || !found {
			continue
		}
		elapsed := now - doc.LastRequestTime
		remaining := doc.MinInterval - elapsed
		if remaining < 0 {
			remaining = 0
		}
		out[doc.Platform+"_"+doc.Endpoint] = SlotStatus{
			Platform:        doc.Platform,
			Endpoint:        doc.Endpoint,
			LastRequestTime: doc.LastRequestTime,
			ElapsedSeconds:  elapsed,
			RemainingSecs:   remaining,
			CanRequest:      elapsed >= doc.MinInterval,
			MinInterval:     doc.MinInterval,
		}
	}
	return out
}

// CleanupOldLocks removes slot documents untouched for longer than maxAge
// and returns how many were removed.
func (g *Guard) CleanupOldLocks(maxAge time.Duration) int {
	matches, err := filepath.Glob(filepath.Join(g.dir, "api_lock_*.json"))
	if err != nil {
		return 0
	}
	now := g.cfg.clk.Now()
	cleaned := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if os.Remove(path) == nil {
			cleaned++
		}
		os.Remove(path + ".lock")
	}
	if cleaned > 0 {
		g.cfg.logger.Info("throttle.cleanup", "cleaned", cleaned, "max_age", maxAge)
	}
	return cleaned
}

var slotSanitizer = strings.NewReplacer("/", "_", ":", "_")

func (g *Guard) slotPath(p platform.Platform, endpoint string) string {
	slot := slotSanitizer.Replace(fmt.Sprintf("%s_%s", p, endpoint))
	return filepath.Join(g.dir, "api_lock_"+slot+".json")
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
