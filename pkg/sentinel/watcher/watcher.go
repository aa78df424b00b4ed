// Package watcher notices removable drives being mounted. It watches the
// directories mounts appear under and, after activity settles, diffs the
// current drive list against the last one.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
)

var log = logging.Get("watcher")

// DefaultDebounce is the quiet period before the drive list is re-read.
const DefaultDebounce = 3 * time.Second

// ErrNoParents is returned when none of the mount parents exist.
var ErrNoParents = errors.New("watcher: no mount directories to watch")

// Options configures a Watcher.
type Options struct {
	// Parents are the directories mounts appear under. Nil uses
	// drive.MountParents.
	Parents []string

	// Debounce is the quiet period after the last event. Zero uses
	// DefaultDebounce.
	Debounce time.Duration

	// List returns the currently mounted drive roots. Nil uses drive.List.
	List func() ([]string, error)
}

// Watcher reports newly mounted drives.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	list     func() ([]string, error)

	mu      sync.Mutex
	watched map[string]bool
	known   map[string]bool
	closed  bool
}

// New starts watching the mount parents that exist.
func New(opts Options) (*Watcher, error) {
	parents := opts.Parents
	if parents == nil {
		parents = drive.MountParents()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.List == nil {
		opts.List = drive.List
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: opts.Debounce,
		list:     opts.List,
		watched:  make(map[string]bool),
		known:    make(map[string]bool),
	}

	for _, p := range parents {
		w.watchParent(p)
	}
	if len(w.watched) == 0 {
		_ = fsw.Close()
		return nil, ErrNoParents
	}
	return w, nil
}

// watchParent watches p and its immediate subdirectories, which covers
// per-user layouts such as /media/<user>/<label>.
func (w *Watcher) watchParent(p string) {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		log.Debug("skipping mount parent", "path", p)
		return
	}
	w.addWatch(p)

	entries, err := os.ReadDir(p)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addWatch(filepath.Join(p, e.Name()))
		}
	}
}

func (w *Watcher) addWatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.watched[path] {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		log.Warn("failed to add watch", "path", path, "error", err)
		return
	}
	w.watched[path] = true
}

// Watched returns the directories being watched, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.watched))
	for p := range w.watched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run blocks until ctx is done, calling onMount for each drive root that
// appears. Drives present when Run starts are not reported.
func (w *Watcher) Run(ctx context.Context, onMount func(root string)) {
	w.rescan(nil)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.rescan(onMount)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	log.Debug("mount parent event", "path", event.Name, "op", event.Op.String())
	if event.Op&fsnotify.Create == 0 {
		return
	}

	parent := filepath.Dir(event.Name)
	w.mu.Lock()
	top := w.watched[parent] && !w.watched[filepath.Dir(parent)]
	w.mu.Unlock()

	// A directory created directly under a top-level parent may be a
	// per-user directory.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() && top {
		w.addWatch(event.Name)
	}
}

// rescan updates the known drive set, calling onMount for new roots.
// Roots that disappeared are forgotten so a remount is reported again.
func (w *Watcher) rescan(onMount func(string)) {
	roots, err := w.list()
	if err != nil {
		log.Warn("listing drives", "error", err)
		return
	}

	current := make(map[string]bool, len(roots))
	var added []string
	w.mu.Lock()
	for _, r := range roots {
		current[r] = true
		if !w.known[r] {
			added = append(added, r)
		}
	}
	w.known = current
	w.mu.Unlock()

	if onMount == nil {
		return
	}
	sort.Strings(added)
	for _, r := range added {
		log.Info("drive mounted", "root", r, "drive", drive.Identity(r))
		onMount(r)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
