//go:build windows

package drive

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Stat reports total and caller-available bytes for the volume at root.
func Stat(root string) (Usage, error) {
	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return Usage{}, fmt.Errorf("encoding %s: %w", root, err)
	}
	var avail, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &avail, &total, &free); err != nil {
		return Usage{}, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", root, err)
	}
	return Usage{Total: int64(total), Free: int64(avail)}, nil
}
