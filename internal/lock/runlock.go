// Package lock prevents concurrent runs from writing into the same
// artifact directory.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// LockFileName is created inside the artifact directory for the duration of
// a run.
const LockFileName = ".metaport.lock"

// ErrLocked is returned when another live process holds the directory.
var ErrLocked = errors.New("artifact directory is locked by another run")

// lockInfo is what the lock file records about its holder.
type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// RunLock is an exclusive lock on an artifact directory.
type RunLock struct {
	path string
}

// Acquire takes the lock for the calling process. A lock left behind by a
// dead process is stolen; a lock held by a live process fails with
// ErrLocked.
func Acquire(dir string) (*RunLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	path := filepath.Join(dir, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			info := lockInfo{PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
			if encErr := json.NewEncoder(f).Encode(info); encErr != nil {
				f.Close()
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", encErr)
			}
			if err := f.Close(); err != nil {
				os.Remove(path)
				return nil, err
			}
			return &RunLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		holder, readErr := readInfo(path)
		if readErr == nil && processAlive(holder.PID) {
			return nil, fmt.Errorf("%w (pid %d since %s)",
				ErrLocked, holder.PID, holder.AcquiredAt.Format(time.RFC3339))
		}

		// Stale or unreadable lock: remove it and retry once.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("failed to remove stale lock file: %w", rmErr)
		}
	}
	return nil, ErrLocked
}

// Release removes the lock file. Safe to call more than once.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func readInfo(path string) (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, err
	}
	if info.PID <= 0 {
		return info, errors.New("lock file has no holder pid")
	}
	return info, nil
}

// processAlive reports whether a pid refers to a running process. Signal 0
// performs the existence check without sending anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
