package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/manifest"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return j
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
	j, err := New(t.TempDir())
	if err != nil || j == nil {
		t.Fatalf("New() = %v, %v", j, err)
	}
}

func TestJournal_RecordAssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	e := &Entry{Operation: OpCheck, Drive: "CARD", Outcome: OutcomePassed}
	if err := j.Record(e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !strings.HasPrefix(e.ID, "check-") {
		t.Errorf("ID = %q, want check- prefix", e.ID)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if _, err := os.Stat(filepath.Join(j.Dir(), e.ID+".json")); err != nil {
		t.Errorf("entry file missing: %v", err)
	}

	got, err := j.Get(e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Drive != "CARD" || got.Outcome != OutcomePassed {
		t.Errorf("Get() = %+v", got)
	}
}

func TestJournal_ListNewestFirstWithLimit(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, drive := range []string{"A", "B", "A"} {
		e := &Entry{Operation: OpSweep, Drive: drive, Timestamp: base.Add(time.Duration(i) * time.Hour)}
		if err := j.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	all, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Errorf("entries not newest first at %d", i)
		}
	}

	limited, err := j.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) len = %d, want 2", len(limited))
	}

	onlyA, err := j.ListDrive("A", 0)
	if err != nil {
		t.Fatalf("ListDrive() error = %v", err)
	}
	if len(onlyA) != 2 {
		t.Errorf("ListDrive(A) len = %d, want 2", len(onlyA))
	}
}

func TestJournal_ListMissingDir(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List() = %v, want empty", entries)
	}
}

func TestJournal_SkipsCorruptFiles(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	if err := j.Record(&Entry{Operation: OpCheck}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(j.Dir(), "garbage.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() len = %d, want 1", len(entries))
	}
}

func TestJournal_GetUnknown(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	if _, err := j.Get("check-nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := j.Get(""); err == nil {
		t.Error("Get(\"\") error = nil, want error")
	}
}

func TestJournal_Cleanup(t *testing.T) {
	t.Parallel()
	j := newJournal(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	old := &Entry{Operation: OpCheck, Timestamp: now.AddDate(0, 0, -100)}
	recent := &Entry{Operation: OpCheck, Timestamp: now.AddDate(0, 0, -10)}
	for _, e := range []*Entry{old, recent} {
		if err := j.Record(e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	removed, err := j.Cleanup(90)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed = %d, want 1", removed)
	}
	if _, err := j.Get(old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old entry still present: %v", err)
	}
	if _, err := j.Get(recent.ID); err != nil {
		t.Errorf("recent entry gone: %v", err)
	}

	if n, _ := j.Cleanup(0); n != 0 {
		t.Errorf("Cleanup(0) removed %d, want 0", n)
	}
}

func TestJournal_ConcurrentRecord(t *testing.T) {
	t.Parallel()
	j := newJournal(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := j.Record(&Entry{Operation: OpCheck}); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("List() len = %d, want 10", len(entries))
	}
}

func TestFromCheck(t *testing.T) {
	t.Parallel()

	res := &check.Result{
		Message:          "Check aborted by user",
		Aborted:          true,
		BatchesCompleted: 2,
		BatchesTotal:     4,
		BytesTested:      4096,
		ConfidencePct:    50,
	}
	e := FromCheck("CARD", "/media/CARD", res, 3*time.Second)

	if e.Operation != OpCheck || e.Outcome != OutcomeAborted {
		t.Errorf("FromCheck() = %+v", e)
	}
	if e.Summary.BatchesCompleted != 2 || e.Summary.ConfidencePct != 50 {
		t.Errorf("Summary = %+v", e.Summary)
	}
	if e.Duration != 3*time.Second {
		t.Errorf("Duration = %v", e.Duration)
	}
}

func TestFromSweep(t *testing.T) {
	t.Parallel()

	res := &sweep.Result{
		DriveID:    "CARD",
		Message:    "Full sweep failed",
		Mismatches: []string{"a.jpg"},
		Records: sweep.Records{
			Manifest: []manifest.Record{{Path: "a.jpg"}, {Path: "b.jpg", Match: true}},
		},
	}
	e := FromSweep("/media/CARD", res, time.Minute)

	if e.Outcome != OutcomeFailed || e.Drive != "CARD" {
		t.Errorf("FromSweep() = %+v", e)
	}
	if e.Summary.FilesVerified != 2 || e.Summary.Mismatches != 1 {
		t.Errorf("Summary = %+v", e.Summary)
	}
}
