package open

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrCannotCreate = errors.New("cannot create file")
var ErrCannotUpdate = errors.New("cannot update file")

// NewSafeFile opens the file at path for writing, empty and accessible only by the current user.
//
// A file already there is truncated and its permission is tightened.
func NewSafeFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_RDWR, os.FileMode(0600))
	if err != nil {
		return nil, err
	}
	if err := restrict(path); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteSafely replaces the content of the file at path with content.
//
// The file and its parent directories are created if missing, and the file
// is made accessible only by the current user.
// Previous content is kept at "<path>.backup" while writing and the backup is
// left in place only when writing fails.
func WriteSafely(path string, content []byte) error {
	writing := false

	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	bkpath := path + ".backup"
	bk, err := NewSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer func() {
		if !writing {
			os.Remove(bkpath)
		}
	}()
	defer bk.Close()

	f, err := os.OpenFile(path, os.O_RDWR, os.FileMode(0600))
	if err == nil {
		// existing file may have loose permissions.
		if err := restrict(path); err != nil {
			f.Close()
			return err
		}
	} else if os.IsPermission(err) {
		return fmt.Errorf("%w, because no permission to write file at %s", ErrCannotUpdate, path)
	} else if os.IsNotExist(err) {
		_f, _err := NewSafeFile(path)
		if _err != nil {
			return fmt.Errorf("%w at %s: %s", ErrCannotCreate, path, _err)
		}
		f = _f
	} else {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(bk, f); err != nil {
		return err
	}

	writing = true
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		return err
	}
	writing = false
	return nil
}
