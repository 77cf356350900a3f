package throttle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrayChou/gaccode-statusline/clock"
	"github.com/DrayChou/gaccode-statusline/platform"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestInterval(t *testing.T) {
	g := New(t.TempDir())
	assert.Equal(t, 60*time.Second, g.Interval(platform.GacCode))
	assert.Equal(t, 30*time.Second, g.Interval(platform.Kimi))
	assert.Equal(t, DefaultInterval, g.Interval(platform.GLM))

	g = New(t.TempDir(), WithInterval(platform.GLM, 5*time.Second))
	assert.Equal(t, 5*time.Second, g.Interval(platform.GLM))
	assert.Equal(t, 60*time.Second, g.Interval(platform.GacCode))
}

func TestAllowDeniesWithinInterval(t *testing.T) {
	clk := clock.NewManual(testStart)
	g := New(t.TempDir(), WithClock(clk))

	assert.True(t, g.Allow(platform.GacCode, "balance"))
	assert.False(t, g.Allow(platform.GacCode, "balance"))

	clk.Advance(59 * time.Second)
	assert.False(t, g.Allow(platform.GacCode, "balance"))

	clk.Advance(2 * time.Second)
	assert.True(t, g.Allow(platform.GacCode, "balance"))
	assert.False(t, g.Allow(platform.GacCode, "balance"))
}

func TestSlotsAreIndependent(t *testing.T) {
	clk := clock.NewManual(testStart)
	g := New(t.TempDir(), WithClock(clk))

	assert.True(t, g.Allow(platform.Kimi, "balance"))
	assert.True(t, g.Allow(platform.Kimi, "usage"))
	assert.True(t, g.Allow(platform.DeepSeek, "balance"))
	assert.False(t, g.Allow(platform.Kimi, "balance"))
}

func TestDenialDoesNotRefreshSlot(t *testing.T) {
	clk := clock.NewManual(testStart)
	g := New(t.TempDir(), WithClock(clk))

	require.True(t, g.Allow(platform.Kimi, "balance"))

	// Repeated denied checks must not push the window forward.
	clk.Advance(15 * time.Second)
	assert.False(t, g.Allow(platform.Kimi, "balance"))
	clk.Advance(16 * time.Second)
	assert.True(t, g.Allow(platform.Kimi, "balance"))
}

func TestAllowFailsOpenOnStorageFailure(t *testing.T) {
	cacheDir := t.TempDir()
	// Occupy the slot directory's path with a file so no slot document can
	// ever be created or locked.
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "api_locks"), []byte{}, 0o644))

	g := New(cacheDir, WithClock(clock.NewManual(testStart)))
	assert.True(t, g.Allow(platform.GacCode, "balance"))
	assert.True(t, g.Allow(platform.GacCode, "balance"))
}

func TestStatus(t *testing.T) {
	clk := clock.NewManual(testStart)
	g := New(t.TempDir(), WithClock(clk))

	require.True(t, g.Allow(platform.GacCode, "balance"))
	clk.Advance(20 * time.Second)

	status := g.Status()
	require.Len(t, status, 1)
	st, ok := status["gaccode_balance"]
	require.True(t, ok)
	assert.Equal(t, "gaccode", st.Platform)
	assert.Equal(t, "balance", st.Endpoint)
	assert.False(t, st.CanRequest)
	assert.InDelta(t, 20, st.ElapsedSeconds, 0.001)
	assert.InDelta(t, 40, st.RemainingSecs, 0.001)
	assert.InDelta(t, 60, st.MinInterval, 0.001)

	clk.Advance(40 * time.Second)
	st = g.Status()["gaccode_balance"]
	assert.True(t, st.CanRequest)
	assert.Zero(t, st.RemainingSecs)
}

func TestCleanupOldLocks(t *testing.T) {
	cacheDir := t.TempDir()
	g := New(cacheDir)

	require.True(t, g.Allow(platform.Kimi, "stale"))
	require.True(t, g.Allow(platform.Kimi, "fresh"))

	stale := filepath.Join(cacheDir, "api_locks", "api_lock_kimi_stale.json")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, g.CleanupOldLocks(24*time.Hour))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(stale + ".lock")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cacheDir, "api_locks", "api_lock_kimi_fresh.json"))
	assert.NoError(t, err)
}

func TestSlotPathSanitized(t *testing.T) {
	g := New("/data")
	path := g.slotPath(platform.GacCode, "v1/balance:current")
	assert.Equal(t, filepath.Join("/data", "api_locks", "api_lock_gaccode_v1_balance_current.json"), path)
}
