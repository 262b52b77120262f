// Package filelock guards the event store against concurrent runs and places
// output files atomically.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already holds the lock
var ErrLocked = errors.New("lock is held by another run")

// FileLock wraps a flock file lock.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a lock backed by the file at path. The file is
// created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// ForStore returns the lock guarding a store file, <store>.lock
func ForStore(storePath string) *FileLock {
	return NewFileLock(storePath + ".lock")
}

// Path returns the lock file path
func (fl *FileLock) Path() string {
	return fl.path
}

// TryLock takes the exclusive lock without blocking. It returns ErrLocked
// when another process holds it.
func (fl *FileLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	if !acquired {
		return fmt.Errorf("%s: %w", fl.path, ErrLocked)
	}
	return nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// AtomicReplace produces path through a temporary file in the same
// directory. write receives the temporary path, which does not exist yet,
// and must create it. On success the file is renamed over path; on failure
// the temporary file is removed and any existing file at path is untouched.
func AtomicReplace(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Reserve a unique name on the same filesystem so the rename is atomic
	reserved, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := reserved.Name()
	reserved.Close()
	if err := os.Remove(tmp); err != nil {
		return fmt.Errorf("failed to reserve temp file: %w", err)
	}

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("temp file for %s was not written: %w", path, err)
	}

	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// AtomicWrite writes data to path so readers never see a partial file.
func AtomicWrite(path string, data []byte) error {
	return AtomicReplace(path, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("failed to write to temp file: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("failed to sync temp file: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close temp file: %w", err)
		}
		return nil
	})
}
