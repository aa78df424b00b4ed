// Package check runs write-verify-delete integrity tests against a drive:
// the quick check over a fraction of capacity and the free-space sweep over
// everything but a safety margin.
//
// Each batch is written from a deterministic generator while being hashed,
// reread twice, and compared. The first disagreement or I/O error ends the
// run. Test files live in a temporary directory at the drive root that is
// always removed afterwards.
package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jamesainslie/sentinel/pkg/sentinel/batch"
	"github.com/jamesainslie/sentinel/pkg/sentinel/hasher"
	"github.com/jamesainslie/sentinel/pkg/sentinel/logging"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

var log = logging.Get("check")

// cycle is one write-verify-delete run over a planned byte count.
type cycle struct {
	root   string
	prefix string

	// name is the user-facing operation name ("Integrity check").
	name string
	// abortedMsg is the message for a cancelled run.
	abortedMsg string
	// step prefixes progress messages ("Free space: ").
	step string

	opts Options
}

// TempDirName returns the name of a temporary test directory:
// <prefix>_<YYYYMMDD_HHMMSS>_<8 random hex>.
func TempDirName(prefix string, opts Options) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", prefix, opts.now().Format("20060102_150405"), suffix)
}

// tempDirPattern matches TempDirName output exactly.
var tempDirPattern = regexp.MustCompile(`^(` + QuickPrefix + `|` + FreeSpacePrefix + `)_\d{8}_\d{6}_[0-9a-f]{8}$`)

// IsTempDir reports whether name is a directory created by a check. User
// folders that merely share a prefix do not match.
func IsTempDir(name string) bool {
	return tempDirPattern.MatchString(name)
}

func (c *cycle) failed(f *Failure, records []BatchRecord) *Result {
	return &Result{
		Passed:  false,
		Message: c.name + " failed",
		Details: f.Detail,
		Records: records,
		Failure: f,
	}
}

// run tests size bytes. size must be at least MinTestBytes.
func (c *cycle) run(ctx context.Context, size int64) *Result {
	plan := batch.Plan(size, c.opts.maxBatch())
	n := len(plan)
	totalSteps := n * 3
	chunk := c.opts.chunk()
	progress := c.opts.OnProgress

	dir := filepath.Join(c.root, TempDirName(c.prefix, c.opts))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return c.failed(ioFailure(0, "Could not create test directory", err), nil)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("removing test directory", "dir", dir, "error", err)
		}
	}()

	log.Info("check started", "root", c.root, "bytes", size, "batches", n)

	records := make([]BatchRecord, 0, n)
	var tested int64

	res := func(r *Result) *Result {
		r.BatchesCompleted = len(records)
		r.BatchesTotal = n
		r.BytesTested = tested
		r.BytesTotal = size
		r.ConfidencePct = Confidence(tested, size)
		return r
	}

	for _, b := range plan {
		if ctx.Err() != nil {
			log.Info("check aborted", "root", c.root, "batches_completed", len(records), "batches_total", n)
			return res(&Result{
				Message: c.abortedMsg,
				Details: fmt.Sprintf("%d/%d batches completed, all passed. %s of %s bytes tested (~%d%%). Extrapolated: no failures in tested area.",
					len(records), n, humanize.Comma(tested), humanize.Comma(size), Confidence(tested, size)),
				Records: records,
				Aborted: true,
			})
		}

		num := b.Index + 1
		path := filepath.Join(dir, fmt.Sprintf("test_%d.bin", b.Index))

		progress.Report(b.Index*3, totalSteps, fmt.Sprintf("%sWriting batch %d/%d (%s)…", c.step, num, n, types.FormatSize(b.Size)))
		expected, err := c.opts.write(path, b, chunk)
		if err != nil {
			return res(c.failed(ioFailure(num, fmt.Sprintf("Write error (batch %d)", num), err), records))
		}

		progress.Report(b.Index*3+1, totalSteps, fmt.Sprintf("%sVerifying batch %d/%d (read 1)…", c.step, num, n))
		read1, err := c.opts.hash(path, chunk)
		if err != nil {
			return res(c.failed(ioFailure(num, fmt.Sprintf("Read error (batch %d)", num), err), records))
		}
		if read1 != expected {
			records = append(records, BatchRecord{Batch: num, ExpectedHash: expected, Read1Hash: read1})
			log.Error("hash mismatch", "batch", num, "read", 1, "expected", expected, "got", read1)
			return res(c.failed(&Failure{
				Kind:   HashMismatchFirstRead,
				Batch:  num,
				Detail: fmt.Sprintf("Hash mismatch on batch %d (first read).", num),
			}, records))
		}

		progress.Report(b.Index*3+2, totalSteps, fmt.Sprintf("%sVerifying batch %d/%d (read 2)…", c.step, num, n))
		read2, err := c.opts.hash(path, chunk)
		if err != nil {
			return res(c.failed(ioFailure(num, fmt.Sprintf("Read error (batch %d, second pass)", num), err), records))
		}
		match := read2 == expected && read1 == read2
		records = append(records, BatchRecord{Batch: num, ExpectedHash: expected, Read1Hash: read1, Read2Hash: read2, Match: match})
		if !match {
			log.Error("hash mismatch", "batch", num, "read", 2, "expected", expected, "got", read2)
			return res(c.failed(&Failure{
				Kind:   HashMismatchSecondRead,
				Batch:  num,
				Detail: fmt.Sprintf("Hash mismatch on batch %d (second read).", num),
			}, records))
		}

		if err := os.Remove(path); err != nil {
			log.Warn("removing batch file", "path", path, "error", err)
		}
		tested += b.Size
		log.Debug("batch verified", "batch", num, "bytes", b.Size)
	}

	progress.Report(totalSteps, totalSteps, "Cleaning up…")
	log.Info("check passed", "root", c.root, "bytes", size, "batches", n)
	return res(&Result{
		Passed:  true,
		Message: c.name + " passed",
		Details: fmt.Sprintf("Verified %d batches, %s bytes total.", n, humanize.Comma(size)),
		Records: records,
	})
}

// writeBatch streams generator output for b into a new file at path, syncs
// it, and returns the digest of what was written.
func writeBatch(path string, b batch.Batch, chunk int) (string, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	digest, err := hasher.Generate(f, b.Index, b.Size, chunk)
	if err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return digest, nil
}
