//go:build linux || darwin || freebsd

package drive

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Stat reports total and caller-available bytes for the filesystem at root.
func Stat(root string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", root, err)
	}
	bsize := int64(st.Bsize)
	return Usage{
		Total: int64(st.Blocks) * bsize,
		Free:  int64(st.Bavail) * bsize,
	}, nil
}
