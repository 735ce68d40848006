//go:build windows

package open

import (
	"os"

	winacl "github.com/hectane/go-acl"
)

// restrict makes the file readable and writable only by the current user.
//
// Windows ignores the mode given to os.OpenFile, so the ACL is set afterwards.
func restrict(path string) error {
	return winacl.Chmod(path, os.FileMode(0600))
}
