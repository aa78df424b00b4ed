package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// dirLister reports every directory under parent as a mounted drive.
func dirLister(parent string) func() ([]string, error) {
	return func() ([]string, error) {
		entries, err := os.ReadDir(parent)
		if err != nil {
			return nil, err
		}
		var roots []string
		for _, e := range entries {
			if e.IsDir() {
				roots = append(roots, filepath.Join(parent, e.Name()))
			}
		}
		return roots, nil
	}
}

func TestNew_NoParents(t *testing.T) {
	_, err := New(Options{Parents: []string{filepath.Join(t.TempDir(), "missing")}})
	if !errors.Is(err, ErrNoParents) {
		t.Fatalf("New() error = %v, want ErrNoParents", err)
	}
}

func TestNew_WatchesParentAndChildren(t *testing.T) {
	parent := t.TempDir()
	if err := os.Mkdir(filepath.Join(parent, "alice"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(Options{Parents: []string{parent}, List: dirLister(parent)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	got := w.Watched()
	if len(got) != 2 || got[0] != parent || got[1] != filepath.Join(parent, "alice") {
		t.Errorf("Watched() = %v", got)
	}
}

func TestRun_ReportsNewMountOnce(t *testing.T) {
	parent := t.TempDir()
	existing := filepath.Join(parent, "OLD")
	if err := os.Mkdir(existing, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(Options{Parents: []string{parent}, Debounce: 20 * time.Millisecond, List: dirLister(parent)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mounts := make(chan string, 4)
	started := make(chan struct{})
	go func() {
		close(started)
		w.Run(ctx, func(root string) { mounts <- root })
	}()
	<-started
	// Give Run time to take its initial snapshot.
	time.Sleep(50 * time.Millisecond)

	card := filepath.Join(parent, "CARD")
	if err := os.Mkdir(card, 0o755); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-mounts:
		if got != card {
			t.Errorf("onMount(%q), want %q", got, card)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for mount")
	}

	select {
	case got := <-mounts:
		t.Errorf("unexpected second report %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRescan_ForgetsRemovedDrives(t *testing.T) {
	roots := []string{"/media/CARD"}
	w := &Watcher{
		list:    func() ([]string, error) { return roots, nil },
		watched: map[string]bool{},
		known:   map[string]bool{},
	}

	var seen []string
	record := func(r string) { seen = append(seen, r) }

	w.rescan(record)
	roots = nil
	w.rescan(record)
	roots = []string{"/media/CARD"}
	w.rescan(record)

	if len(seen) != 2 {
		t.Errorf("reports = %v, want CARD twice", seen)
	}
}
