package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsTolerated(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, c.Load())
	assert.Empty(t, c.GetAll())
}

func TestLoadAndGetDottedPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vesselframe.toml")
	contents := `
[system]
max_tracked = 500

[[zones]]
name = "harbor"
lat = 1.5
lon = 2.5
radius_km = 10
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	c := New(path)
	require.NoError(t, c.Load())

	assert.Equal(t, int64(500), c.Get("system.max_tracked", 0))
	assert.True(t, c.Has("system.max_tracked"))
	assert.False(t, c.Has("system.nonexistent"))
	assert.Equal(t, "fallback", c.Get("missing.path", "fallback"))

	zones := c.Zones()
	require.Len(t, zones, 1)
	assert.Equal(t, "harbor", zones[0].Name)
	assert.Equal(t, 10.0, zones[0].RadiusKm)
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "cfg.toml"))
	c.Set("system.log_level", "debug")
	assert.Equal(t, "debug", c.Get("system.log_level", nil))
}

func TestGetAllReturnsDeepCopy(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "cfg.toml"))
	c.Set("system.max_tracked", 10)

	all := c.GetAll()
	system := all["system"].(map[string]any)
	system["max_tracked"] = 99999

	assert.Equal(t, 10, c.Get("system.max_tracked", nil))
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	c := New(path)
	c.Set("system.max_tracked", 250)
	require.NoError(t, c.Save())

	reloaded := New(path)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, int64(250), reloaded.Get("system.max_tracked", 0))
}
