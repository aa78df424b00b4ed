// Package marker reads and writes the last-sweep timestamp kept on the drive
// itself in <root>/Sentinel/.last_sweep.
package marker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DirName is the housekeeping directory at the drive root. Manifest
	// builds never descend into it.
	DirName = "Sentinel"

	// FileName holds the ISO-8601 time of the last successful sweep.
	FileName = ".last_sweep"
)

// layouts accepted on read. Older cards carry a local time with no zone.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// Path returns the marker file path for a drive root.
func Path(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Read returns the stored time. ok is false when the marker is absent or
// unparsable; err is only set for read failures other than not-exist.
func Read(root string) (t time.Time, ok bool, err error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("reading sweep marker: %w", err)
	}
	t, ok = Parse(string(data))
	return t, ok, nil
}

// Parse parses marker content, trimming whitespace.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if layout == time.RFC3339Nano {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Write stores t, creating the Sentinel directory if needed. The file is
// replaced by rename so a reader never sees a partial timestamp.
func Write(root string, t time.Time) error {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp marker: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.WriteString(t.Format(time.RFC3339Nano)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing marker: %w", err)
	}
	if err := os.Rename(tmpPath, Path(root)); err != nil {
		return fmt.Errorf("replacing marker: %w", err)
	}
	return nil
}

// Due reports whether a sweep is due: no marker, or at least intervalDays
// whole days since it.
func Due(last time.Time, ok bool, intervalDays int, now time.Time) bool {
	if !ok {
		return true
	}
	return int(now.Sub(last).Hours()/24) >= intervalDays
}
