package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one matched file
type Entry struct {
	Path    string // Absolute path
	Name    string
	ModTime time.Time
	Size    int64
}

// Stem returns the file name without its extension
func (e Entry) Stem() string {
	return strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	Files  []Entry
	Errors []error
}

// ScanDirectory lists the regular files directly inside dir whose names
// satisfy match. A nil match accepts every file. Files are sorted by name.
func ScanDirectory(dir string, match func(name string) bool) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}

	result := &ScanResult{Files: make([]Entry, 0, len(entries))}
	for _, d := range entries {
		if d.IsDir() {
			continue
		}
		name := d.Name()
		if match != nil && !match(name) {
			continue
		}

		fi, err := d.Info()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to stat %s: %w", name, err))
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		result.Files = append(result.Files, Entry{
			Path:    filepath.Join(absDir, name),
			Name:    name,
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Name < result.Files[j].Name })
	return result, nil
}
