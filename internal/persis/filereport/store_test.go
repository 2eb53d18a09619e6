package filereport

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := New(t.TempDir(), "testapp", opts...)
	require.NoError(t, err)
	return store
}

func addReports(t *testing.T, store *Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := range n {
		id, path, err := store.NextReportPath()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, fmt.Appendf(nil, `{"n":%d}`, i), 0600))
		ids = append(ids, id)
	}
	return ids
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesDirectory", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "nested", "Reports")
		store, err := New(dir, "testapp")
		require.NoError(t, err)
		assert.Equal(t, dir, store.Dir())
		assert.DirExists(t, dir)
	})

	t.Run("EmptyArguments", func(t *testing.T) {
		t.Parallel()
		_, err := New("", "testapp")
		assert.Error(t, err)
		_, err = New(t.TempDir(), "")
		assert.Error(t, err)
	})
}

func TestStore_NextReportPath(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	id1, path1, err := store.NextReportPath()
	require.NoError(t, err)
	id2, path2, err := store.NextReportPath()
	require.NoError(t, err)

	assert.Positive(t, id1)
	assert.Equal(t, id1+1, id2)
	assert.Equal(t, filepath.Join(store.Dir(), fmt.Sprintf("testapp-report-%016x.json", id1)), path1)
	assert.Equal(t, store.ReportPath(id2), path2)
	assert.FileExists(t, path1)
}

func TestStore_IDsContinueAcrossStores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := New(dir, "testapp")
	require.NoError(t, err)

	// A report far in the future pushes every later allocation past it.
	future := int64(1) << 60
	require.NoError(t, first.Write(future, []byte(`{}`)))

	second, err := New(dir, "testapp")
	require.NoError(t, err)
	id, _, err := second.NextReportPath()
	require.NoError(t, err)
	assert.Equal(t, future+1, id)
}

func TestStore_ConcurrentAllocation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithMaxReportCount(100))

	const workers = 8
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			id, _, err := store.NextReportPath()
			assert.NoError(t, err)
			ids <- id
		})
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %016x", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

func TestStore_ReadWrite(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id, _, err := store.NextReportPath()
	require.NoError(t, err)

	require.NoError(t, store.Write(id, []byte(`{"v":1}`)))
	data, err := store.Read(id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(data))

	require.NoError(t, store.Write(id, []byte(`{"v":22}`)))
	data, err = store.Read(id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":22}`, string(data))

	info, err := os.Stat(store.ReportPath(id))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(reportFilePermissions), info.Mode().Perm())
}

func TestStore_ReadErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Read(0)
	assert.ErrorIs(t, err, ErrInvalidReportID)

	_, err = store.Read(12345)
	assert.ErrorIs(t, err, ErrReportNotFound)

	assert.ErrorIs(t, store.Write(-1, []byte(`{}`)), ErrInvalidReportID)
}

func TestStore_IDsAndCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithMaxReportCount(10))
	want := addReports(t, store, 3)

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "other-report-0000000000000001.json"), []byte("{}"), 0600))
	require.NoError(t, os.WriteFile(RecrashPath(store.ReportPath(want[0])), []byte("{}"), 0600))

	ids, err := store.IDs()
	require.NoError(t, err)
	assert.Equal(t, want, ids)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ids := addReports(t, store, 2)
	recrash := RecrashPath(store.ReportPath(ids[0]))
	require.NoError(t, os.WriteFile(recrash, []byte(`{}`), 0600))

	_, err := store.Read(ids[0])
	require.NoError(t, err)

	require.NoError(t, store.Delete(ids[0]))
	assert.NoFileExists(t, store.ReportPath(ids[0]))
	assert.NoFileExists(t, recrash)

	_, err = store.Read(ids[0])
	assert.ErrorIs(t, err, ErrReportNotFound)
	assert.ErrorIs(t, store.Delete(ids[0]), ErrReportNotFound)
	assert.ErrorIs(t, store.Delete(0), ErrInvalidReportID)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_DeleteAll(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	addReports(t, store, 4)

	require.NoError(t, store.DeleteAll())
	count, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_Prune(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithMaxReportCount(2))
	ids := addReports(t, store, 5)

	deleted, err := store.Prune()
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := store.IDs()
	require.NoError(t, err)
	assert.Equal(t, ids[3:], remaining)

	deleted, err = store.Prune()
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStore_AddUserReport(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithMaxReportCount(1))

	first, err := store.AddUserReport([]byte(`{"n":1}`))
	require.NoError(t, err)
	second, err := store.AddUserReport([]byte(`{"n":2}`))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	ids, err := store.IDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{second}, ids)

	data, err := store.Read(second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(data))
}

func TestStore_LockFileOption(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "Data", "report-id.lock")
	store := newTestStore(t, WithLockFile(lockPath))

	_, _, err := store.NextReportPath()
	require.NoError(t, err)
	assert.FileExists(t, lockPath)
}

func TestRecrashPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/r/app-report-0000000000000001.recrash.json", RecrashPath("/r/app-report-0000000000000001.json"))
}
