package check

import (
	"time"

	"github.com/jamesainslie/sentinel/pkg/sentinel/batch"
	"github.com/jamesainslie/sentinel/pkg/sentinel/drive"
	"github.com/jamesainslie/sentinel/pkg/sentinel/hasher"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// DefaultSafetyMargin is the free space always left untouched (100 MiB).
const DefaultSafetyMargin = 100 * types.MiB

// MinTestBytes is the smallest test a check will run.
const MinTestBytes = types.KiB

// Temp directory prefixes at the drive root.
const (
	QuickPrefix     = "SentinelCheck"
	FreeSpacePrefix = "SentinelSweep"
)

// Options tunes a check. The zero value uses production defaults.
type Options struct {
	// ChunkSize is the read/write unit. Zero uses hasher.ChunkSize.
	ChunkSize int

	// MaxBatchBytes bounds one test file. Zero uses batch.MaxFileBytes.
	MaxBatchBytes int64

	// SafetyMargin is the free space left untouched. Zero uses
	// DefaultSafetyMargin; a negative value means no margin.
	SafetyMargin int64

	// Usage reports capacity for the drive root. Nil uses drive.Stat.
	Usage drive.UsageFunc

	// Now returns the current time for temp directory names. Nil uses time.Now.
	Now func() time.Time

	// OnProgress receives (current, total, message) reports.
	OnProgress types.ProgressFunc

	// Test hooks for the batch write and the verification reads.
	writeFile func(path string, b batch.Batch, chunk int) (string, error)
	hashFile  func(path string, chunk int) (string, error)
}

func (o Options) write(path string, b batch.Batch, chunk int) (string, error) {
	if o.writeFile != nil {
		return o.writeFile(path, b, chunk)
	}
	return writeBatch(path, b, chunk)
}

func (o Options) hash(path string, chunk int) (string, error) {
	if o.hashFile != nil {
		return o.hashFile(path, chunk)
	}
	return hasher.File(path, chunk)
}

func (o Options) chunk() int {
	if o.ChunkSize <= 0 {
		return hasher.ChunkSize
	}
	return o.ChunkSize
}

func (o Options) maxBatch() int64 {
	if o.MaxBatchBytes <= 0 {
		return batch.MaxFileBytes
	}
	return o.MaxBatchBytes
}

func (o Options) margin() int64 {
	switch {
	case o.SafetyMargin == 0:
		return DefaultSafetyMargin
	case o.SafetyMargin < 0:
		return 0
	default:
		return o.SafetyMargin
	}
}

func (o Options) usage(root string) (drive.Usage, error) {
	if o.Usage != nil {
		return o.Usage(root)
	}
	return drive.Stat(root)
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
