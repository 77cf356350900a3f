package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/pslog"

	"github.com/DrayChou/gaccode-statusline/clock"
	"github.com/DrayChou/gaccode-statusline/platform"
)

func writeFlatFile(t *testing.T, dir string, sessions map[string]any) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"sessions": sessions})
	require.NoError(t, err)
	path := filepath.Join(dir, legacyMappingFile)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMigrateFlatFile(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(testStart)

	recent := epoch(testStart.Add(-time.Hour))
	stale := epoch(testStart.Add(-30 * 24 * time.Hour))
	flatPath := writeFlatFile(t, dir, map[string]any{
		"aa" + payload[2:]: map[string]any{
			"platform":   "kimi",
			"created_at": recent,
			"metadata":   map[string]any{"seat": "a"},
		},
		"bb" + payload[2:]: map[string]any{
			"platform":     "deepseek",
			"created_time": testStart.Add(-2 * time.Hour).Format("2006-01-02T15:04:05.999999"),
		},
		"cc" + payload[2:]: map[string]any{
			"platform":   "openai", // unknown, skipped
			"created_at": recent,
		},
		"dd" + payload[2:]: map[string]any{
			"platform":   "glm",
			"created_at": stale, // beyond retention, skipped
		},
	})

	r := New(dir, WithClock(clk))

	// New ran the migration; the flat file is permanently retired.
	_, err := os.Stat(flatPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(flatPath + ".migrated")
	assert.NoError(t, err)

	rec, found := r.Lookup("aa" + payload[2:])
	require.True(t, found)
	assert.Equal(t, "kimi", rec.Platform)
	assert.InDelta(t, recent, rec.CreatedAt, 0.001)
	assert.Equal(t, "a", rec.Metadata["seat"])

	rec, found = r.Lookup("bb" + payload[2:])
	require.True(t, found)
	assert.Equal(t, "deepseek", rec.Platform)
	assert.InDelta(t, epoch(testStart.Add(-2*time.Hour)), rec.CreatedAt, 0.001)

	_, found = r.Lookup("cc" + payload[2:])
	assert.False(t, found)
	_, found = r.Lookup("dd" + payload[2:])
	assert.False(t, found)
}

func TestMigrateReturnsCount(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(testStart)
	path := writeFlatFile(t, dir, map[string]any{
		"aa" + payload[2:]: map[string]any{"platform": "kimi", "created_at": epoch(testStart)},
		"bb" + payload[2:]: map[string]any{"platform": "glm", "created_at": epoch(testStart)},
	})

	r := &Registry{
		dir: filepath.Join(dir, "sessions"),
		cfg: config{clk: clk, logger: pslog.NoopLogger(), lockTimeout: time.Second, retention: DefaultRetention},
	}
	n, err := r.MigrateFlatFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMigratePrefersShardedRecord(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(testStart)

	// Seed a sharded record, then present a flat file claiming otherwise.
	seed := New(dir, WithClock(clk))
	require.True(t, seed.SetSessionPlatform("aa"+payload[2:], platform.GLM, nil))

	path := writeFlatFile(t, dir, map[string]any{
		"aa" + payload[2:]: map[string]any{"platform": "kimi", "created_at": epoch(testStart)},
	})

	r := New(dir, WithClock(clk))
	_, err := os.Stat(path + ".migrated")
	assert.NoError(t, err)

	rec, found := r.Lookup("aa" + payload[2:])
	require.True(t, found)
	assert.Equal(t, "glm", rec.Platform, "sharded record must win")
}

func TestMigrateCorruptFlatFileStillRetired(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, legacyMappingFile)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	New(dir, WithClock(clock.NewManual(testStart)))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + ".migrated")
	assert.NoError(t, err)
}

func TestLegacyTimestamp(t *testing.T) {
	now := testStart

	assert.InDelta(t, 1749000000, legacyTimestamp(float64(1749000000), nil, now), 0.001)
	assert.InDelta(t, epoch(testStart.Add(-time.Hour)),
		legacyTimestamp(testStart.Add(-time.Hour).Format(time.RFC3339), nil, now), 0.001)
	assert.InDelta(t, epoch(testStart.Add(-time.Hour)),
		legacyTimestamp(nil, testStart.Add(-time.Hour).Format("2006-01-02T15:04:05.999999"), now), 0.001)

	// Nothing usable falls back to now.
	assert.InDelta(t, epoch(now), legacyTimestamp(nil, nil, now), 0.001)
	assert.InDelta(t, epoch(now), legacyTimestamp("yesterday", float64(0), now), 0.001)
}
