// Package journal keeps a host-side history of checks and sweeps, one JSON
// file per run.
package journal

import "time"

// Operation is the kind of run recorded.
type Operation string

const (
	// OpCheck is a quick integrity check.
	OpCheck Operation = "check"
	// OpSweep is a full sweep.
	OpSweep Operation = "sweep"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeAborted Outcome = "aborted"
)

// Entry is one journaled run.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Operation Operation `json:"operation" yaml:"operation"`
	Drive     string    `json:"drive" yaml:"drive"`
	Root      string    `json:"root" yaml:"root"`
	Outcome   Outcome   `json:"outcome" yaml:"outcome"`
	Message   string    `json:"message" yaml:"message"`
	Details   string    `json:"details,omitempty" yaml:"details,omitempty"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration_ns" yaml:"duration"`

	Summary Summary `json:"summary" yaml:"summary"`
}

// Summary holds the counters worth keeping from a run.
type Summary struct {
	BatchesCompleted int   `json:"batches_completed" yaml:"batches_completed"`
	BatchesTotal     int   `json:"batches_total" yaml:"batches_total"`
	BytesTested      int64 `json:"bytes_tested" yaml:"bytes_tested"`
	ConfidencePct    int   `json:"confidence_pct,omitempty" yaml:"confidence_pct,omitempty"`

	FilesVerified int  `json:"files_verified,omitempty" yaml:"files_verified,omitempty"`
	Mismatches    int  `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
	ManifestBuilt bool `json:"manifest_built,omitempty" yaml:"manifest_built,omitempty"`
}
