// Package lock serializes operations per drive across processes with PID
// lock files. A lock left behind by a process that no longer exists is
// recovered automatically.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
)

// ErrLocked is returned when another live process holds the drive lock.
var ErrLocked = errors.New("drive is busy with another sentinel operation")

// HeldError reports who holds a lock. It matches ErrLocked.
type HeldError struct {
	Drive string
	PID   int
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s: %v (pid %d)", e.Drive, ErrLocked, e.PID)
}

// Is matches ErrLocked.
func (e *HeldError) Is(target error) bool { return target == ErrLocked }

// settleTime is how long a lock file may stay unreadable while its creator
// is still writing the PID.
const settleTime = 5 * time.Second

// Lock is a held drive lock.
type Lock struct {
	path string
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock for drive id in dir.
func Acquire(dir, id string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	path := filepath.Join(dir, id+".lock")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("writing lock file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		pid, readErr := ReadPID(path)
		if readErr == nil && Alive(pid) {
			return nil, &HeldError{Drive: id, PID: pid}
		}
		if readErr != nil && recent(path) {
			return nil, &HeldError{Drive: id}
		}

		logging.Get("lock").Warn("recovering stale drive lock", "drive", id, "stale_pid", pid)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock: %w", err)
		}
	}
	return nil, &HeldError{Drive: id}
}

// recent reports whether path was modified within settleTime.
func recent(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < settleTime
}

// Release removes the lock file. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReadPID reads the PID stored in a lock file.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pid %d", pid)
	}
	return pid, nil
}
