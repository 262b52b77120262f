package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForStore(t *testing.T) {
	lock := ForStore("/data/searchanalytics.duckdb")
	assert.Equal(t, "/data/searchanalytics.duckdb.lock", lock.Path())
}

func TestTryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "store.lock")

	first := NewFileLock(lockPath)
	require.NoError(t, first.TryLock())

	// flock locks are per file description, so a second handle contends
	second := NewFileLock(lockPath)
	err := second.TryLock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "daily.csv")

	var seen string
	err := AtomicReplace(target, func(tmp string) error {
		seen = tmp
		_, statErr := os.Stat(tmp)
		assert.True(t, os.IsNotExist(statErr), "temp path should not exist yet")
		assert.Equal(t, filepath.Dir(target), filepath.Dir(tmp))
		return os.WriteFile(tmp, []byte("a,b\n"), 0600)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	_, err = os.Stat(seen)
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicReplaceFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "daily.csv")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0644))

	boom := errors.New("copy failed")
	err := AtomicReplace(target, func(tmp string) error {
		require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0644))
		return boom
	})
	require.ErrorIs(t, err, boom)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be cleaned up")
}

func TestAtomicReplaceRequiresOutput(t *testing.T) {
	target := filepath.Join(t.TempDir(), "daily.csv")
	err := AtomicReplace(target, func(string) error { return nil })
	require.Error(t, err)
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAtomicWrite(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		data     string
	}{
		{name: "new file", data: "hello"},
		{name: "overwrite", existing: "previous content", data: "new"},
		{name: "empty", existing: "x", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "run_summary.md")
			if tt.existing != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.existing), 0644))
			}

			require.NoError(t, AtomicWrite(path, []byte(tt.data)))

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(got))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}
