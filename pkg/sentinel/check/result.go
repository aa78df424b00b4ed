package check

import (
	"errors"
	"fmt"
	"math"
)

// FailureKind classifies why a check failed.
type FailureKind int

const (
	// InsufficientSpace means the usable space was below MinTestBytes.
	InsufficientSpace FailureKind = iota + 1
	// IOFailure means a create, write, or read returned an OS error.
	IOFailure
	// HashMismatchFirstRead means the first reread did not match what was written.
	HashMismatchFirstRead
	// HashMismatchSecondRead means the second reread disagreed with the
	// first or with what was written: the reads are unstable.
	HashMismatchSecondRead
)

// String returns a short machine-friendly name.
func (k FailureKind) String() string {
	switch k {
	case InsufficientSpace:
		return "insufficient_space"
	case IOFailure:
		return "io_failure"
	case HashMismatchFirstRead:
		return "hash_mismatch_first_read"
	case HashMismatchSecondRead:
		return "hash_mismatch_second_read"
	default:
		return "unknown"
	}
}

// Errors matched by a *Failure through errors.Is.
var (
	ErrInsufficientSpace = errors.New("insufficient free space")
	ErrIO                = errors.New("i/o failure")
	ErrHashMismatch      = errors.New("hash mismatch")
)

// Failure describes the first failure of a check.
type Failure struct {
	Kind FailureKind `json:"kind" yaml:"kind"`

	// Batch is the 1-based batch that failed, or 0 when no batch was involved.
	Batch int `json:"batch,omitempty" yaml:"batch,omitempty"`

	// Detail is the human-readable description shown to users.
	Detail string `json:"detail" yaml:"detail"`

	// Err is the underlying OS error for IOFailure.
	Err error `json:"-" yaml:"-"`
}

// Error returns Detail.
func (f *Failure) Error() string { return f.Detail }

// Unwrap returns the underlying OS error, if any.
func (f *Failure) Unwrap() error { return f.Err }

// Is reports whether target is the sentinel error for f's kind.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrInsufficientSpace:
		return f.Kind == InsufficientSpace
	case ErrIO:
		return f.Kind == IOFailure
	case ErrHashMismatch:
		return f.Kind == HashMismatchFirstRead || f.Kind == HashMismatchSecondRead
	}
	return false
}

func ioFailure(batch int, detail string, err error) *Failure {
	return &Failure{Kind: IOFailure, Batch: batch, Detail: fmt.Sprintf("%s: %v", detail, err), Err: err}
}

// BatchRecord is the outcome of one verified batch.
type BatchRecord struct {
	// Batch is 1-based.
	Batch        int    `json:"batch" yaml:"batch"`
	ExpectedHash string `json:"expected_hash" yaml:"expected_hash"`
	Read1Hash    string `json:"read1_hash" yaml:"read1_hash"`

	// Read2Hash is empty when the first read already mismatched.
	Read2Hash string `json:"read2_hash,omitempty" yaml:"read2_hash,omitempty"`
	Match     bool   `json:"match" yaml:"match"`
}

// Result is the outcome of a quick check or free-space sweep.
type Result struct {
	Passed  bool          `json:"passed" yaml:"passed"`
	Message string        `json:"message" yaml:"message"`
	Details string        `json:"details" yaml:"details"`
	Records []BatchRecord `json:"records" yaml:"records"`

	// Aborted is set when the run was cancelled between batches. The
	// accounting fields below are meaningful for aborted runs and are also
	// filled for completed ones.
	Aborted          bool  `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	BatchesCompleted int   `json:"batches_completed" yaml:"batches_completed"`
	BatchesTotal     int   `json:"batches_total" yaml:"batches_total"`
	BytesTested      int64 `json:"bytes_tested" yaml:"bytes_tested"`
	BytesTotal       int64 `json:"bytes_total" yaml:"bytes_total"`
	ConfidencePct    int   `json:"confidence_pct" yaml:"confidence_pct"`

	Failure *Failure `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Err returns the failure as an error, or nil when there was none. An
// aborted run has no failure.
func (r *Result) Err() error {
	if r == nil || r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Confidence returns round(100*tested/total). It is 100 only when every
// planned byte was tested, and 0 when total is 0.
func Confidence(tested, total int64) int {
	if total <= 0 {
		return 0
	}
	if tested >= total {
		return 100
	}
	pct := int(math.Round(100 * float64(tested) / float64(total)))
	if pct > 99 {
		pct = 99
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
