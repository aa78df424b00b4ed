//go:build !linux && !darwin && !freebsd && !windows

package drive

// Stat is not implemented on this platform.
func Stat(root string) (Usage, error) {
	return Usage{}, ErrUnsupported
}
