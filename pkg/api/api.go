// Package api is the entry point for front ends: it resolves settings from
// config, serializes runs per drive, persists host state and history, and
// hands the work to the check and sweep engines.
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jamesainslie/sentinel/pkg/sentinel/check"
	"github.com/jamesainslie/sentinel/pkg/sentinel/config"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/journal"
	"github.com/jamesainslie/sentinel/pkg/sentinel/lock"
	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
	"github.com/jamesainslie/sentinel/pkg/sentinel/manifest"
	"github.com/jamesainslie/sentinel/pkg/sentinel/marker"
	"github.com/jamesainslie/sentinel/pkg/sentinel/recommend"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

var log = logging.Get("api")

// ErrNotADirectory is returned when a drive root is not a directory.
var ErrNotADirectory = errors.New("drive root is not a directory")

// RunOptions carries per-run callbacks.
type RunOptions struct {
	OnProgress types.ProgressFunc
	OnPhase    func(sweep.Phase)
}

// Service runs checks and sweeps with a fixed configuration.
type Service struct {
	cfg   *config.Config
	state *config.StateStore

	// usage and now are replaced in tests.
	usage drive.UsageFunc
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithUsage replaces the drive capacity probe.
func WithUsage(fn drive.UsageFunc) Option {
	return func(s *Service) { s.usage = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service for cfg.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:   cfg,
		state: config.NewStateStore(cfg.StatePath()),
		usage: drive.Stat,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// State returns the host state store.
func (s *Service) State() *config.StateStore { return s.state }

func (s *Service) checkOptions(progress types.ProgressFunc) check.Options {
	margin := s.cfg.SafetyMarginBytes()
	if margin == 0 {
		margin = -1
	}
	return check.Options{
		ChunkSize:     s.cfg.ChunkBytes(),
		MaxBatchBytes: s.cfg.MaxBatchBytes(),
		SafetyMargin:  margin,
		Usage:         s.usage,
		Now:           s.now,
		OnProgress:    progress,
	}
}

func statRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("drive %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, root)
	}
	return nil
}

// CheckFraction resolves the quick-check size for root: fraction if
// positive, else the configured fraction, else the capacity
// recommendation.
func (s *Service) CheckFraction(root string, fraction float64) (float64, error) {
	if fraction > 0 {
		return fraction, nil
	}
	if s.cfg.CheckSizeFraction > 0 {
		return s.cfg.CheckSizeFraction, nil
	}
	u, err := s.usage(root)
	if err != nil {
		return 0, fmt.Errorf("reading drive usage: %w", err)
	}
	return recommend.CheckFraction(u.Total), nil
}

// RunQuickCheck tests fraction of root's capacity. A fraction of zero or
// less uses the configured or recommended size.
func (s *Service) RunQuickCheck(ctx context.Context, root string, fraction float64, opts RunOptions) (*check.Result, error) {
	if err := statRoot(root); err != nil {
		return nil, err
	}
	id := drive.Identity(root)

	fraction, err := s.CheckFraction(root, fraction)
	if err != nil {
		return nil, err
	}

	l, err := lock.Acquire(s.cfg.LockDir(), id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	start := s.now()
	log.Info("quick check", "drive", id, "root", root, "fraction", fraction)
	res, err := check.Quick(ctx, root, fraction, s.checkOptions(opts.OnProgress))
	if err != nil {
		return nil, err
	}

	if !res.Aborted {
		if err := s.state.RecordCheck(id, root, s.now()); err != nil {
			log.Warn("recording check time", "error", err)
		}
	}
	s.journal(journal.FromCheck(id, root, res, s.now().Sub(start)))
	return res, nil
}

// RunFullSweep verifies (or builds) root's manifest and tests all its free
// space, recording the sweep time only on success.
func (s *Service) RunFullSweep(ctx context.Context, root string, opts RunOptions) (*sweep.Result, error) {
	if err := statRoot(root); err != nil {
		return nil, err
	}
	id := drive.Identity(root)

	l, err := lock.Acquire(s.cfg.LockDir(), id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = l.Release() }()

	store, err := manifest.Open(s.cfg.ManifestDir())
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	start := s.now()
	res, err := sweep.Run(ctx, root, sweep.Options{
		DriveID:    id,
		Store:      store,
		Host:       s.state,
		Check:      s.checkOptions(nil),
		OnProgress: opts.OnProgress,
		OnPhase:    opts.OnPhase,
		Now:        s.now,
	})
	if err != nil {
		return nil, err
	}

	s.journal(journal.FromSweep(root, res, s.now().Sub(start)))
	return res, nil
}

func (s *Service) journal(e *journal.Entry) {
	if !s.cfg.Journal.Enabled {
		return
	}
	j, err := s.Journal()
	if err != nil {
		log.Warn("opening journal", "error", err)
		return
	}
	if err := j.Record(e); err != nil {
		log.Warn("writing journal entry", "error", err)
		return
	}
	if _, err := j.Cleanup(s.cfg.Journal.RetentionDays); err != nil {
		log.Warn("cleaning journal", "error", err)
	}
}

// Journal returns the run history.
func (s *Service) Journal() (*journal.Journal, error) {
	return journal.New(s.cfg.JournalDir())
}

// OpenManifests opens the manifest store. The caller closes it.
func (s *Service) OpenManifests() (*manifest.Store, error) {
	return manifest.Open(s.cfg.ManifestDir())
}

// LastSweepTime returns when root was last swept successfully. The drive's
// own marker wins; when it is absent or unreadable the host record for the
// drive is used, then the global record if it names the same root.
func (s *Service) LastSweepTime(root string) (time.Time, bool, error) {
	t, ok, err := marker.Read(root)
	if err != nil {
		log.Warn("reading sweep marker", "root", root, "error", err)
	}
	if ok {
		return t, true, nil
	}

	st, err := s.state.Load()
	if err != nil {
		return time.Time{}, false, err
	}
	if d := st.Drive(drive.Identity(root)); d.LastSweepTime != nil {
		return *d.LastSweepTime, true, nil
	}
	if st.LastSweepTime != nil && st.LastDrive == root {
		return *st.LastSweepTime, true, nil
	}
	return time.Time{}, false, nil
}

// LastCheckTime returns the most recent quick check on this host.
func (s *Service) LastCheckTime() (time.Time, bool, error) {
	st, err := s.state.Load()
	if err != nil {
		return time.Time{}, false, err
	}
	if st.LastCheckTime == nil {
		return time.Time{}, false, nil
	}
	return *st.LastCheckTime, true, nil
}

// DriveCheckTime returns the last quick check of root, if any.
func (s *Service) DriveCheckTime(root string) (time.Time, bool, error) {
	st, err := s.state.Load()
	if err != nil {
		return time.Time{}, false, err
	}
	if d := st.Drive(drive.Identity(root)); d.LastCheckTime != nil {
		return *d.LastCheckTime, true, nil
	}
	return time.Time{}, false, nil
}

// IsSweepDue reports whether root has never been swept or was last swept
// at least intervalDays ago. An interval of zero or less uses the config.
func (s *Service) IsSweepDue(root string, intervalDays int) (bool, error) {
	if intervalDays <= 0 {
		intervalDays = s.cfg.SweepIntervalDays
	}
	last, ok, err := s.LastSweepTime(root)
	if err != nil {
		return false, err
	}
	return marker.Due(last, ok, intervalDays, s.now()), nil
}

// Recommendation returns the sweep schedule suited to root's capacity.
func (s *Service) Recommendation(root string) (recommend.Schedule, error) {
	u, err := s.usage(root)
	if err != nil {
		return recommend.Schedule{}, fmt.Errorf("reading drive usage: %w", err)
	}
	return recommend.ForCapacity(u.Total), nil
}

// Warnings returns capacity warnings for root.
func (s *Service) Warnings(root string) ([]string, error) {
	u, err := s.usage(root)
	if err != nil {
		return nil, fmt.Errorf("reading drive usage: %w", err)
	}
	return recommend.Warnings(u), nil
}

// Usage returns root's capacity.
func (s *Service) Usage(root string) (drive.Usage, error) {
	return s.usage(root)
}

// Drives lists mounted removable drives with their capacity. Drives whose
// usage cannot be read are skipped.
func (s *Service) Drives() ([]drive.Info, error) {
	roots, err := drive.List()
	if err != nil {
		return nil, err
	}
	out := make([]drive.Info, 0, len(roots))
	for _, r := range roots {
		info, err := drive.Describe(r, s.usage)
		if err != nil {
			log.Debug("skipping drive", "root", r, "error", err)
			continue
		}
		out = append(out, info)
	}
	return out, nil
}
