// Package sweep runs the full periodic maintenance pass on a drive: verify
// (or, on first sight, build) the content manifest, exercise all free space,
// and on success record the sweep time on the drive and on the host.
//
// Only a successful run touches the timestamps. An aborted or failed run
// leaves the previous sweep time in place so the sweep stays due.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
	"github.com/jamesainslie/sentinel/pkg/sentinel/manifest"
	"github.com/jamesainslie/sentinel/pkg/sentinel/marker"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

var log = logging.Get("sweep")

// Phase names a stage of a sweep.
type Phase string

// Phases in the order they can occur.
const (
	PhaseBuildManifest  Phase = "build_manifest"
	PhaseVerifyManifest Phase = "verify_manifest"
	PhaseFreeSpace      Phase = "free_space"
	PhaseCommit         Phase = "commit"
)

// maxListedMismatches caps the mismatches quoted in Details.
const maxListedMismatches = 5

// ManifestStore loads and saves manifests by drive id. *manifest.Store
// implements it.
type ManifestStore interface {
	Load(driveID string) (*manifest.Manifest, error)
	Save(m *manifest.Manifest) error
}

// HostRecorder stores the host-side copy of the sweep time.
// *config.StateStore implements it.
type HostRecorder interface {
	RecordSweep(driveID, root string, t time.Time) error
}

// Options configures a sweep.
type Options struct {
	// DriveID keys the manifest. Empty uses drive.Identity(root).
	DriveID string

	// Store is required.
	Store ManifestStore

	// Host receives the sweep time on commit. Nil skips the host record.
	Host HostRecorder

	// Check tunes the free-space phase and hashing chunk size. Its
	// OnProgress is replaced by OnProgress below.
	Check check.Options

	OnProgress types.ProgressFunc
	OnPhase    func(Phase)

	// Now stamps the run. Nil uses time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) phase(p Phase) {
	log.Debug("phase", "phase", string(p))
	if o.OnPhase != nil {
		o.OnPhase(p)
	}
}

// Records holds per-phase verification records.
type Records struct {
	Manifest  []manifest.Record   `json:"manifest" yaml:"manifest"`
	FreeSpace []check.BatchRecord `json:"free_space" yaml:"free_space"`
}

// Result is the outcome of a full sweep.
type Result struct {
	DriveID string `json:"drive_id" yaml:"drive_id"`
	Passed  bool   `json:"passed" yaml:"passed"`
	Message string `json:"message" yaml:"message"`

	// Details holds one line per completed phase.
	Details string `json:"details" yaml:"details"`

	ManifestPassed  bool `json:"manifest_passed" yaml:"manifest_passed"`
	FreeSpacePassed bool `json:"free_space_passed" yaml:"free_space_passed"`
	Aborted         bool `json:"aborted,omitempty" yaml:"aborted,omitempty"`

	// ManifestBuilt is set when this run created the drive's first manifest.
	ManifestBuilt bool `json:"manifest_built,omitempty" yaml:"manifest_built,omitempty"`

	Records    Records       `json:"records" yaml:"records"`
	Mismatches []string      `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
	FreeSpace  *check.Result `json:"free_space,omitempty" yaml:"free_space,omitempty"`

	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	// CommittedAt is the sweep time handed to the drive marker and the host
	// record; zero unless the sweep passed. It is set even when a write
	// failed, and then CommitWarnings says which. If only the drive marker
	// failed, an older marker still on the drive keeps deciding when the
	// next sweep is due.
	CommittedAt time.Time `json:"committed_at,omitempty" yaml:"committed_at,omitempty"`

	// CommitWarnings lists timestamp writes that failed on a passed sweep.
	CommitWarnings []string `json:"commit_warnings,omitempty" yaml:"commit_warnings,omitempty"`
}

// ErrNoStore is returned when Options.Store is nil.
var ErrNoStore = errors.New("sweep: manifest store required")

type run struct {
	ctx   context.Context
	root  string
	opts  Options
	res   *Result
	parts []string
}

func (r *run) details(extra ...string) string {
	return strings.Join(append(append([]string(nil), r.parts...), extra...), "\n")
}

func (r *run) abort(detail string) *Result {
	r.res.Aborted = true
	r.res.Passed = false
	r.res.Message = "Full sweep aborted"
	r.res.Details = r.details(detail)
	log.Info("sweep aborted", "drive", r.res.DriveID)
	return r.res
}

func (r *run) fail(detail string) *Result {
	r.res.Passed = false
	r.res.Message = "Full sweep failed"
	r.res.Details = r.details(detail)
	log.Warn("sweep failed", "drive", r.res.DriveID, "details", detail)
	return r.res
}

// Run performs a full sweep of root. The error return is reserved for
// failures before any work starts (no store, unreadable manifest store);
// everything else is reported in the Result.
func Run(ctx context.Context, root string, opts Options) (*Result, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	id := opts.DriveID
	if id == "" {
		id = drive.Identity(root)
	}

	stored, err := opts.Store.Load(id)
	if err != nil {
		return nil, fmt.Errorf("loading manifest for %s: %w", id, err)
	}

	r := &run{
		ctx:  ctx,
		root: root,
		opts: opts,
		res: &Result{
			DriveID:         id,
			Passed:          true,
			Message:         "Full sweep passed",
			ManifestPassed:  true,
			FreeSpacePassed: true,
			StartedAt:       opts.now(),
		},
	}
	log.Info("sweep started", "drive", id, "root", root, "has_manifest", stored != nil)

	mopts := manifest.Options{
		DriveID:    id,
		ChunkSize:  opts.Check.ChunkSize,
		Now:        opts.Now,
		OnProgress: opts.OnProgress,
	}

	if stored == nil {
		if res, done := r.buildManifest(mopts); done {
			return res, nil
		}
	} else {
		if res, done := r.verifyManifest(stored, mopts); done {
			return res, nil
		}
	}

	if res, done := r.freeSpace(); done {
		return res, nil
	}

	return r.commit(), nil
}

func (r *run) buildManifest(mopts manifest.Options) (*Result, bool) {
	r.opts.phase(PhaseBuildManifest)

	built, err := manifest.Build(r.ctx, r.root, mopts)
	if err != nil {
		r.res.ManifestPassed = false
		return r.fail(fmt.Sprintf("Could not build manifest: %v", err)), true
	}
	if built.Aborted {
		return r.abort(fmt.Sprintf("Manifest build aborted. %d files hashed. No manifest saved; no timestamp written.", built.Hashed)), true
	}
	if err := r.opts.Store.Save(built.Manifest); err != nil {
		r.res.ManifestPassed = false
		return r.fail(fmt.Sprintf("Could not save manifest: %v", err)), true
	}

	r.res.ManifestBuilt = true
	r.parts = append(r.parts, "Manifest built (new card).")
	return nil, false
}

func (r *run) verifyManifest(m *manifest.Manifest, mopts manifest.Options) (*Result, bool) {
	r.opts.phase(PhaseVerifyManifest)

	vr := manifest.Verify(r.ctx, r.root, m, mopts)
	r.res.ManifestPassed = vr.Passed
	r.res.Records.Manifest = vr.Records
	r.res.Mismatches = vr.Mismatches

	if vr.Aborted {
		state := "all matched"
		if n := len(vr.Mismatches); n > 0 {
			state = fmt.Sprintf("%d mismatch(es)", n)
		}
		return r.abort(fmt.Sprintf("File verification aborted. %d/%d files verified, %s. No timestamp written.",
			len(vr.Records), m.Len(), state)), true
	}
	if !vr.Passed {
		return r.fail(MismatchSummary(vr.Mismatches)), true
	}

	r.parts = append(r.parts, "File verification passed.")
	return nil, false
}

// MismatchSummary formats a verification failure quoting the first five
// mismatches.
func MismatchSummary(mismatches []string) string {
	shown := mismatches
	if len(shown) > maxListedMismatches {
		shown = shown[:maxListedMismatches]
	}
	s := fmt.Sprintf("File verification failed (%d mismatch(es)): %s", len(mismatches), strings.Join(shown, "; "))
	if extra := len(mismatches) - len(shown); extra > 0 {
		s += fmt.Sprintf(" … and %d more", extra)
	}
	return s
}

func (r *run) freeSpace() (*Result, bool) {
	r.opts.phase(PhaseFreeSpace)

	copts := r.opts.Check
	copts.OnProgress = r.opts.OnProgress
	fr, err := check.FreeSpace(r.ctx, r.root, copts)
	if err != nil {
		r.res.FreeSpacePassed = false
		return r.fail(fmt.Sprintf("Free-space sweep failed: %v", err)), true
	}

	r.res.FreeSpace = fr
	r.res.Records.FreeSpace = fr.Records
	r.res.FreeSpacePassed = fr.Passed

	if fr.Aborted {
		return r.abort(fr.Details + " No timestamp written."), true
	}
	if !fr.Passed {
		return r.fail("Free-space sweep failed: " + fr.Details), true
	}

	r.parts = append(r.parts, fr.Details)
	return nil, false
}

func (r *run) warn(msg string) {
	r.parts = append(r.parts, msg)
	r.res.CommitWarnings = append(r.res.CommitWarnings, msg)
}

func (r *run) commit() *Result {
	r.opts.phase(PhaseCommit)

	at := r.opts.now()
	if err := marker.Write(r.root, at); err != nil {
		log.Warn("writing drive sweep marker", "drive", r.res.DriveID, "error", err)
		r.warn(fmt.Sprintf("Warning: could not write sweep time to drive: %v", err))
	}
	if r.opts.Host != nil {
		if err := r.opts.Host.RecordSweep(r.res.DriveID, r.root, at); err != nil {
			log.Warn("recording sweep time on host", "drive", r.res.DriveID, "error", err)
			r.warn(fmt.Sprintf("Warning: could not record sweep time on host: %v", err))
		}
	}

	r.res.CommittedAt = at
	r.res.Details = r.details()
	log.Info("sweep passed", "drive", r.res.DriveID, "manifest_built", r.res.ManifestBuilt)
	return r.res
}
