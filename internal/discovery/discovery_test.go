package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("timestamp,name\n"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestFileDate(t *testing.T) {
	tests := []struct {
		stem string
		want string
		ok   bool
	}{
		{"searches_2024_03_05", "2024-03-05", true},
		{"export_search_2023_12_31", "2023-12-31", true},
		{"searches_2024_02_30", "", false},
		{"searches_2024_3_5", "", false},
		{"searches_2024_03_05_v2", "", false},
		{"searches", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.stem, func(t *testing.T) {
			got, ok := FileDate(tt.stem)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format("2006-01-02"))
			}
		})
	}
}

func TestChronological(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// modification times deliberately disagree with the file name dates
	touch(t, dir, "searches_2024_03_02.csv", now)
	touch(t, dir, "searches_2024_03_01.xlsx", now.Add(time.Hour))
	touch(t, dir, "manual_export.csv", time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	touch(t, dir, "readme.md", now)

	got, err := Chronological(dir)
	require.NoError(t, err)

	var order []string
	for _, in := range got {
		order = append(order, in.Name)
	}
	assert.Equal(t, []string{"searches_2024_03_01.xlsx", "manual_export.csv", "searches_2024_03_02.csv"}, order)
	assert.True(t, got[0].Dated)
	assert.False(t, got[1].Dated)
}

func TestNewest(t *testing.T) {
	dir := t.TempDir()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, dir, "searches_2024_03_09.csv", old)
	touch(t, dir, "searches_2024_03_10.csv", old)
	touch(t, dir, "searches_2024_02_28.csv", old.Add(1000*time.Hour))

	got, err := Newest(dir)
	require.NoError(t, err)
	assert.Equal(t, "searches_2024_03_10.csv", got.Name)
	assert.True(t, filepath.IsAbs(got.Path))
}

func TestNoInput(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
	}{
		{"empty directory", func(t *testing.T) string { return t.TempDir() }},
		{"missing directory", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }},
		{"only unsupported files", func(t *testing.T) string {
			dir := t.TempDir()
			touch(t, dir, "notes.md", time.Now())
			return dir
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Newest(tt.dir(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNoInput))
		})
	}
}

func TestIsInput(t *testing.T) {
	tests := map[string]bool{
		"events_2024_03_05.csv":    true,
		"/in/EVENTS.XLSX":          true,
		"export.tsv":               true,
		"notes.md":                 false,
		".events.csv":              false,
		"~$events_2024_03_05.xlsx": false,
		"archive":                  false,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsInput(name), name)
	}
}
