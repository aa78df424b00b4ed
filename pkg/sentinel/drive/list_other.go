//go:build !linux && !darwin && !windows

package drive

// MountParents is empty on platforms without a known automount tree.
func MountParents() []string { return nil }

// List is not implemented on this platform.
func List() ([]string, error) {
	return nil, ErrUnsupported
}
