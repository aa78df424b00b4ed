//go:build windows

package drive

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// MountParents is empty on Windows; drive letters have no parent directory
// to watch.
func MountParents() []string { return nil }

// List returns the roots of present drive letters, skipping network and
// optical drives.
func List() ([]string, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, fmt.Errorf("GetLogicalDrives: %w", err)
	}

	var roots []string
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		root := string(rune('A'+i)) + `:\`
		p, err := windows.UTF16PtrFromString(root)
		if err != nil {
			continue
		}
		switch windows.GetDriveType(p) {
		case windows.DRIVE_REMOTE, windows.DRIVE_CDROM, windows.DRIVE_NO_ROOT_DIR, windows.DRIVE_UNKNOWN:
			continue
		}
		roots = append(roots, root)
	}
	return roots, nil
}
