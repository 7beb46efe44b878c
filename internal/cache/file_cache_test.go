package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Path  string   `json:"path"`
	Bands []string `json:"bands"`
}

func TestFileCacheRoundTrip(t *testing.T) {
	fc := NewFileCacheAt[record](filepath.Join(t.TempDir(), "exports"))
	key := fc.Key("cerrado-landsat", 10, "12", 2021)

	_, ok := fc.Get(key)
	assert.False(t, ok)

	want := record{Path: "/out/x.tif", Bands: []string{"ndvi_median", "year"}}
	require.NoError(t, fc.Set(key, want))
	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestFileCacheKeyIsStable(t *testing.T) {
	fc := NewFileCacheAt[record](t.TempDir())
	assert.Equal(t, fc.Key("a", 1), fc.Key("a", 1))
	assert.NotEqual(t, fc.Key("a", 1), fc.Key("a", 2))
}

func TestFileCacheRejectsTamperedEntry(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCacheAt[record](dir)
	key := fc.Key("k")
	require.NoError(t, fc.Set(key, record{Path: "a"}))

	file := filepath.Join(dir, key+".json")
	require.NoError(t, os.WriteFile(file, []byte(`{"data":{"path":"b"},"checksum":"00"}`), 0644))
	_, ok := fc.Get(key)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(file, []byte(`not json`), 0644))
	_, ok = fc.Get(key)
	assert.False(t, ok)
}
