// Package lock serializes relocation work across devenv processes with an
// exclusive lock file next to the ledger.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName is the lock file created beside the ledger.
const FileName = "relocate.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("relocation lock is held by another process")

var lockFn = lockFile

// RelocationLock is held for the duration of a move or cleanup. Keep the lock
// alive by keeping the file open.
type RelocationLock struct {
	path string
	f    *os.File
}

// PathFor returns the lock path for a ledger file.
func PathFor(ledgerPath string) string {
	return filepath.Join(filepath.Dir(ledgerPath), FileName)
}

// Acquire takes the lock at lockPath without blocking and records the
// current PID in it.
func Acquire(lockPath string) (*RelocationLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFn(f); err != nil {
		_ = f.Close()
		if !isContended(err) {
			return nil, fmt.Errorf("lock %s: %w", lockPath, err)
		}
		if holder := HolderPID(lockPath); holder > 0 {
			return nil, fmt.Errorf("%w (pid %d): %v", ErrLocked, holder, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrLocked, err)
	}

	if err := writePID(f); err != nil {
		_ = unlockFile(f)
		_ = f.Close()
		return nil, err
	}
	return &RelocationLock{path: lockPath, f: f}, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

// HolderPID reads the PID recorded in a lock file, or 0 if unknown.
func HolderPID(lockPath string) int {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return pid
}

func (l *RelocationLock) Path() string { return l.path }

func (l *RelocationLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unlockFile(l.f)
	err := l.f.Close()
	l.f = nil
	return err
}
