package watch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvOnly(name string) bool { return strings.HasSuffix(name, ".csv") }

func newWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, csvOnly)
	require.NoError(t, err)
	w.SetQuietPeriod(50 * time.Millisecond)
	t.Cleanup(func() { w.Close() })
	return w
}

func waitReady(t *testing.T, w *Watcher) string {
	t.Helper()
	select {
	case path := <-w.Ready():
		return path
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a ready file")
		return ""
	}
}

func TestReportsNewFileOnce(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, dir)
	assert.Equal(t, filepath.Clean(dir), w.Dir())

	path := filepath.Join(dir, "events_2024_03_05.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.WriteString("a,b\n")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	assert.Equal(t, path, waitReady(t, w))

	select {
	case extra := <-w.Ready():
		t.Fatalf("file reported twice: %s", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))
	csv := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(csv, []byte("x"), 0644))

	assert.Equal(t, csv, waitReady(t, w))
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestStaleTimerDoesNotReport(t *testing.T) {
	w := newWatcher(t, t.TempDir())
	path := filepath.Join(w.Dir(), "events_2024_03_05.csv")

	stale := &quietTimer{timer: time.NewTimer(time.Hour)}
	current := &quietTimer{timer: time.NewTimer(time.Hour)}
	defer stale.timer.Stop()
	defer current.timer.Stop()

	w.mu.Lock()
	w.pending[path] = current
	w.mu.Unlock()

	w.fire(path, stale)

	w.mu.Lock()
	assert.Same(t, current, w.pending[path])
	w.mu.Unlock()
	select {
	case got := <-w.Ready():
		t.Fatalf("stale timer reported %s", got)
	default:
	}

	w.fire(path, current)
	assert.Equal(t, path, waitReady(t, w))
	w.mu.Lock()
	assert.NotContains(t, w.pending, path)
	w.mu.Unlock()
}
