package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/hasher"
	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
	"github.com/jamesainslie/sentinel/pkg/sentinel/marker"
)

var log = logging.Get("manifest")

// Files returns the drive-relative, forward-slash paths of every regular file
// under root in sorted order. Symlinks are not followed. The Sentinel
// housekeeping directory and leftover check directories at the root are
// skipped. Unreadable subdirectories are skipped; an unreadable root is an
// error.
func Files(root string) ([]string, error) {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("reading drive root: %w", err)
	}

	var (
		mu    sync.Mutex
		paths []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Debug("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && filepath.Dir(path) == root {
				name := d.Name()
				if name == marker.DirName || check.IsTempDir(name) {
					return fastwalk.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		mu.Lock()
		paths = append(paths, filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// shortName trims a path to at most 40 characters for progress messages.
func shortName(p string) string {
	r := []rune(p)
	if len(r) <= 40 {
		return p
	}
	return string(r[:40])
}

// Build hashes every file under root and returns a new manifest. Files are
// hashed one at a time in path order; unreadable files are skipped. If ctx is
// cancelled between files the result is Aborted with no manifest. The error
// return is reserved for an unreadable root.
func Build(ctx context.Context, root string, opts Options) (*BuildResult, error) {
	paths, err := Files(root)
	if err != nil {
		return nil, err
	}

	total := max(len(paths), 1)
	res := &BuildResult{}
	entries := make([]Entry, 0, len(paths))

	log.Info("building manifest", "root", root, "files", len(paths))
	for i, rel := range paths {
		if ctx.Err() != nil {
			log.Info("manifest build aborted", "root", root, "hashed", res.Hashed)
			res.Aborted = true
			return res, nil
		}
		opts.OnProgress.Report(i, total, fmt.Sprintf("Building manifest: %s…", shortName(filepath.Base(filepath.FromSlash(rel)))))

		sum, err := hasher.File(filepath.Join(root, filepath.FromSlash(rel)), opts.ChunkSize)
		if err != nil {
			log.Warn("skipping unreadable file", "path", rel, "error", err)
			res.Skipped++
			continue
		}
		entries = append(entries, Entry{Path: rel, Hash: sum})
		res.Hashed++
	}
	opts.OnProgress.Report(total, total, "Manifest built")

	res.Manifest = &Manifest{
		DriveID: opts.DriveID,
		BuiltAt: opts.now(),
		Entries: entries,
	}
	log.Info("manifest built", "root", root, "hashed", res.Hashed, "skipped", res.Skipped)
	return res, nil
}

// Verify rehashes every manifest entry under root in order and compares.
// A file that no longer exists is recorded as missing, one that cannot be
// read as a read error. Cancellation between files returns the records so
// far with Aborted set.
func Verify(ctx context.Context, root string, m *Manifest, opts Options) *VerifyResult {
	res := &VerifyResult{Passed: true}
	if m == nil {
		return res
	}

	total := len(m.Entries)
	res.Records = make([]Record, 0, total)

	for i, e := range m.Entries {
		if ctx.Err() != nil {
			log.Info("manifest verify aborted", "root", root, "verified", len(res.Records), "total", total)
			res.Aborted = true
			return res
		}
		opts.OnProgress.Report(i, total, fmt.Sprintf("Verifying files: %s…", shortName(e.Path)))

		rec := verifyEntry(root, e, opts.ChunkSize)
		res.Records = append(res.Records, rec)
		if !rec.Match {
			res.Passed = false
			res.Mismatches = append(res.Mismatches, rec.Mismatch())
			log.Warn("manifest mismatch", "path", e.Path, "note", rec.Note)
		}
	}
	opts.OnProgress.Report(total, total, "Files verified")
	return res
}

func verifyEntry(root string, e Entry, chunk int) Record {
	rec := Record{Path: e.Path, ExpectedHash: e.Hash}

	sum, err := hasher.File(filepath.Join(root, filepath.FromSlash(e.Path)), chunk)
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		// ENOTDIR: a parent directory was replaced by a file.
		rec.Note = NoteMissing
	case err != nil:
		rec.Note = NoteReadError
	default:
		rec.ObservedHash = &sum
		rec.Match = sum == e.Hash
	}
	return rec
}
