// Package filelock provides inter-process locking of a run's output root and
// atomic, locked writes of persisted log streams.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by TryLock callers when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// FileLock wraps a flock file lock for coordinating access to a path.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock for the given lock file path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// ForDirectory returns the lock guarding dir. The lock file is a sibling of
// dir ("<dir>.lock") so that dir itself can be removed and recreated while
// the lock is held.
func ForDirectory(dir string) *FileLock {
	clean := filepath.Clean(dir)
	return NewFileLock(clean + ".lock")
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock acquires an exclusive lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	if err := ensureParent(fl.path); err != nil {
		return err
	}
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire an exclusive lock without blocking.
// Returns ErrLocked if another process holds it.
func (fl *FileLock) TryLock() error {
	if err := ensureParent(fl.path); err != nil {
		return err
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

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// AtomicWrite writes data to path via a temp file in the same directory and
// a rename, so readers never observe a partially written log.
func AtomicWrite(path string, data []byte) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	// Clean up the temp file unless it was renamed into place
	renamed := false
	defer func() {
		if !renamed {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	renamed = true

	return nil
}

// LockAndWrite acquires "<path>.lock", writes atomically, and releases the lock.
func LockAndWrite(path string, data []byte) error {
	lock := NewFileLock(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	return AtomicWrite(path, data)
}
