package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache(t *testing.T) {
	t.Parallel()

	cache := NewCache[string]("reports", 10, time.Hour)

	assert.Equal(t, "reports", cache.Name())
	assert.Equal(t, 0, cache.Size())
}

func TestCache_LoadLatest(t *testing.T) {
	t.Parallel()

	cache := NewCache[string]("test", 10, time.Hour)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0600))

	calls := 0
	loader := func() (string, error) {
		calls++
		b, err := os.ReadFile(path)
		return string(b), err
	}

	data, err := cache.LoadLatest(path, loader)
	require.NoError(t, err)
	assert.Equal(t, "v1", data)

	data, err = cache.LoadLatest(path, loader)
	require.NoError(t, err)
	assert.Equal(t, "v1", data)
	assert.Equal(t, 1, calls, "unchanged file is served from the cache")

	// A different size marks the entry stale even within the same second.
	require.NoError(t, os.WriteFile(path, []byte("version2"), 0600))
	data, err = cache.LoadLatest(path, loader)
	require.NoError(t, err)
	assert.Equal(t, "version2", data)
	assert.Equal(t, 2, calls)
}

func TestCache_LoadLatestMissingFile(t *testing.T) {
	t.Parallel()

	cache := NewCache[string]("test", 10, time.Hour)
	_, err := cache.LoadLatest(filepath.Join(t.TempDir(), "missing.json"), func() (string, error) {
		t.Fatal("loader must not run for a missing file")
		return "", nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCache_LoaderError(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]("test", 10, time.Hour)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	errBad := errors.New("bad json")
	_, err := cache.LoadLatest(path, func() (int, error) { return 0, errBad })
	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, 0, cache.Size())
}

func TestCache_InvalidateAndPurge(t *testing.T) {
	t.Parallel()

	cache := NewCache[string]("test", 10, time.Hour)
	dir := t.TempDir()
	for _, name := range []string{"a", "b"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0600))
		_, err := cache.LoadLatest(path, func() (string, error) { return name, nil })
		require.NoError(t, err)
	}
	require.Equal(t, 2, cache.Size())

	cache.Invalidate(filepath.Join(dir, "a"))
	assert.Equal(t, 1, cache.Size())

	cache.Purge()
	assert.Equal(t, 0, cache.Size())
}
