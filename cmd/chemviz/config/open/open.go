//go:build !windows

package open

import "os"

// restrict makes the file readable and writable only by its owner.
func restrict(path string) error {
	return os.Chmod(path, os.FileMode(0600))
}
