//go:build darwin

package drive

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

const volumesDir = "/Volumes"

// MountParents returns the directories that gain a child when a drive is
// mounted.
func MountParents() []string {
	return []string{volumesDir}
}

// List returns mounted filesystems under /Volumes.
func List() ([]string, error) {
	n, err := unix.Getfsstat(nil, unix.MNT_NOWAIT)
	if err != nil {
		return nil, fmt.Errorf("getfsstat: %w", err)
	}
	buf := make([]unix.Statfs_t, n)
	if _, err := unix.Getfsstat(buf, unix.MNT_NOWAIT); err != nil {
		return nil, fmt.Errorf("getfsstat: %w", err)
	}

	var roots []string
	for _, st := range buf {
		mnt := filepath.Clean(unix.ByteSliceToString(st.Mntonname[:]))
		if strings.HasPrefix(mnt, volumesDir+"/") {
			roots = append(roots, mnt)
		}
	}
	sort.Strings(roots)
	return roots, nil
}
