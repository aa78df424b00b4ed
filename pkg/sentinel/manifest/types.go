// Package manifest records the content hash of every file on a drive and
// later verifies the drive against that record to detect silent corruption.
//
// Manifests are kept on the host, keyed by drive identity, in a Badger
// database (see Store). The drive itself only ever sees reads.
package manifest

import (
	"time"

	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// Notes on a verification record.
const (
	NoteMissing   = "missing"
	NoteReadError = "read_error"
)

// Entry is one file in a manifest.
type Entry struct {
	// Path is relative to the drive root with forward slashes.
	Path string `json:"path" yaml:"path"`
	Hash string `json:"hash" yaml:"hash"`
}

// Manifest is the content record for one drive. Entries are sorted by Path.
type Manifest struct {
	DriveID string    `json:"drive_id" yaml:"drive_id"`
	BuiltAt time.Time `json:"built_at" yaml:"built_at"`
	Entries []Entry   `json:"entries" yaml:"entries"`
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Record is the verification outcome for one manifest entry.
type Record struct {
	Path         string `json:"path" yaml:"path"`
	ExpectedHash string `json:"expected_hash" yaml:"expected_hash"`

	// ObservedHash is nil when the file was missing or unreadable.
	ObservedHash *string `json:"observed_hash" yaml:"observed_hash"`
	Match        bool    `json:"match" yaml:"match"`

	// Note is "", NoteMissing or NoteReadError.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Mismatch returns the user-facing description of a failed record: the bare
// path for a content mismatch, "<path> (missing)" or "<path> (read error)".
func (r Record) Mismatch() string {
	switch r.Note {
	case NoteMissing:
		return r.Path + " (missing)"
	case NoteReadError:
		return r.Path + " (read error)"
	default:
		return r.Path
	}
}

// Options tunes Build and Verify.
type Options struct {
	// DriveID is stored on built manifests.
	DriveID string

	// ChunkSize is the hash read unit. Zero uses hasher.ChunkSize.
	ChunkSize int

	// Now stamps BuiltAt. Nil uses time.Now.
	Now func() time.Time

	// OnProgress receives one report per file.
	OnProgress types.ProgressFunc
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// BuildResult is the outcome of Build.
type BuildResult struct {
	// Manifest is nil when the build was aborted.
	Manifest *Manifest

	// Hashed counts files added to the manifest; Skipped counts unreadable ones.
	Hashed  int
	Skipped int

	Aborted bool
}

// VerifyResult is the outcome of Verify.
type VerifyResult struct {
	// Passed is true when no record so far has failed.
	Passed     bool
	Records    []Record
	Mismatches []string
	Aborted    bool
}

// Matched counts records that matched.
func (v *VerifyResult) Matched() int {
	n := 0
	for _, r := range v.Records {
		if r.Match {
			n++
		}
	}
	return n
}
