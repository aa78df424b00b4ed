// Package drive answers host questions about removable drives: capacity and
// free space, a stable identity for keying host-side records, and which
// mounted volumes look like removable media.
package drive

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrUnsupported is returned by Stat and List on platforms without an
// implementation.
var ErrUnsupported = errors.New("drive: unsupported platform")

// UnknownIdentity is used when a drive root yields no usable name.
const UnknownIdentity = "UNKNOWN"

// Usage is a point-in-time capacity report for the filesystem holding a root.
type Usage struct {
	// Total is the filesystem size in bytes.
	Total int64 `json:"total" yaml:"total"`

	// Free is the number of bytes available to the caller.
	Free int64 `json:"free" yaml:"free"`
}

// Used returns Total-Free, never negative.
func (u Usage) Used() int64 {
	if u.Free >= u.Total {
		return 0
	}
	return u.Total - u.Free
}

// UsedFraction returns Used/Total, or 0 for an empty filesystem.
func (u Usage) UsedFraction() float64 {
	if u.Total <= 0 {
		return 0
	}
	return float64(u.Used()) / float64(u.Total)
}

// UsageFunc reports usage for a drive root. Stat is the production one;
// tests substitute fixed capacities.
type UsageFunc func(root string) (Usage, error)

// Info describes a mounted drive.
type Info struct {
	Root     string `json:"root" yaml:"root"`
	Identity string `json:"identity" yaml:"identity"`
	Usage    Usage  `json:"usage" yaml:"usage"`
}

// Identity derives the host-side key for a drive root. A Windows root such as
// `E:\` yields "E"; otherwise the final path element (the volume label on
// /media/<user>/<label> or /Volumes/<label>) is upper-cased with anything
// outside [A-Z0-9_-] replaced by '_'. Empty results become UnknownIdentity.
func Identity(root string) string {
	r := strings.TrimSpace(root)
	if len(r) >= 2 && r[1] == ':' && isLetter(r[0]) && strings.Trim(r[2:], `\/`) == "" {
		return strings.ToUpper(r[:1])
	}

	r = strings.ReplaceAll(r, `\`, "/")
	r = strings.TrimRight(r, "/")
	if r == "" {
		return UnknownIdentity
	}
	base := filepath.Base(filepath.FromSlash(r))
	if base == "." || base == string(filepath.Separator) {
		return UnknownIdentity
	}

	var b strings.Builder
	for _, c := range strings.ToUpper(base) {
		switch {
		case c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)), c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	id := strings.Trim(b.String(), "_")
	if id == "" {
		return UnknownIdentity
	}
	return id
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Describe stats root and returns its Info.
func Describe(root string, usage UsageFunc) (Info, error) {
	if usage == nil {
		usage = Stat
	}
	u, err := usage(root)
	if err != nil {
		return Info{}, err
	}
	return Info{Root: root, Identity: Identity(root), Usage: u}, nil
}
