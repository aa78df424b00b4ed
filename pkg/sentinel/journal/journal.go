package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("journal entry not found")

// Journal stores entries as <id>.json files in a directory.
type Journal struct {
	dir string
	mu  sync.Mutex

	// now is replaced in tests.
	now func() time.Time
}

// New returns a journal rooted at dir. The directory is created on the
// first Record.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	return &Journal{dir: dir, now: time.Now}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string { return j.dir }

// Record assigns e an ID and timestamp when missing and persists it.
func (j *Journal) Record(e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = j.now().UTC()
	}
	if e.ID == "" {
		e.ID = newID(e.Operation, e.Timestamp)
	}

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("creating journal directory: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling journal entry: %w", err)
	}

	path := filepath.Join(j.dir, e.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing journal entry: %w", err)
	}
	return nil
}

// List returns entries newest first. A limit of zero or less returns all.
// Unparseable files are skipped.
func (j *Journal) List(limit int) ([]Entry, error) {
	return j.list("", limit)
}

// ListDrive is List restricted to one drive id.
func (j *Journal) ListDrive(drive string, limit int) ([]Entry, error) {
	return j.list(drive, limit)
}

func (j *Journal) list(drive string, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readAll()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(all))
	for _, e := range all {
		if drive == "" || e.Drive == drive {
			entries = append(entries, e.Entry)
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Timestamp.After(entries[b].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given id.
func (j *Journal) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	e, err := readEntry(filepath.Join(j.dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Cleanup removes entries recorded more than retentionDays ago and returns
// how many were removed. A retention of zero or less keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readAll()
	if err != nil {
		return 0, err
	}

	cutoff := j.now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, e := range all {
		if !e.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(e.path); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}

type storedEntry struct {
	Entry
	path string
}

func (j *Journal) readAll() ([]storedEntry, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal directory: %w", err)
	}

	var out []storedEntry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(j.dir, f.Name())
		e, err := readEntry(path)
		if err != nil {
			continue
		}
		out = append(out, storedEntry{Entry: *e, path: path})
	}
	return out, nil
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &e, nil
}

// newID returns e.g. "sweep-2026-06-15T10-30-00-1f0c9a2b".
func newID(op Operation, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s", op, ts.UTC().Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}

func outcome(passed, aborted bool) Outcome {
	switch {
	case aborted:
		return OutcomeAborted
	case passed:
		return OutcomePassed
	default:
		return OutcomeFailed
	}
}

// FromCheck builds an entry for a quick check that ran for d.
func FromCheck(driveID, root string, res *check.Result, d time.Duration) *Entry {
	return &Entry{
		Operation: OpCheck,
		Drive:     driveID,
		Root:      root,
		Outcome:   outcome(res.Passed, res.Aborted),
		Message:   res.Message,
		Details:   res.Details,
		Duration:  d,
		Summary: Summary{
			BatchesCompleted: res.BatchesCompleted,
			BatchesTotal:     res.BatchesTotal,
			BytesTested:      res.BytesTested,
			ConfidencePct:    res.ConfidencePct,
		},
	}
}

// FromSweep builds an entry for a full sweep that ran for d.
func FromSweep(root string, res *sweep.Result, d time.Duration) *Entry {
	e := &Entry{
		Operation: OpSweep,
		Drive:     res.DriveID,
		Root:      root,
		Outcome:   outcome(res.Passed, res.Aborted),
		Message:   res.Message,
		Details:   res.Details,
		Duration:  d,
		Summary: Summary{
			FilesVerified: len(res.Records.Manifest),
			Mismatches:    len(res.Mismatches),
			ManifestBuilt: res.ManifestBuilt,
		},
	}
	if fs := res.FreeSpace; fs != nil {
		e.Summary.BatchesCompleted = fs.BatchesCompleted
		e.Summary.BatchesTotal = fs.BatchesTotal
		e.Summary.BytesTested = fs.BytesTested
		e.Summary.ConfidencePct = fs.ConfidencePct
	}
	return e
}
