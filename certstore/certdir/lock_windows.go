//go:build windows
// +build windows

package certdir

import (
	"fmt"
	"os"

	"github.com/rs/xid"
)

// fileLock is a held lock file. Without flock semantics the creation of the
// file is the lock itself, so a writer that crashes leaves the file behind
// and the operator has to remove it.
type fileLock struct {
	file *os.File
}

// tryLockFile attempts to create the lock file exclusively. It returns false
// without an error when the file already exists.
func tryLockFile(name string) (*fileLock, bool, error) {
	file, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, lockPerm)
	if os.IsExist(err) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	fmt.Fprintf(file, "%s %d\n", xid.New(), os.Getpid())

	return &fileLock{file: file}, true, nil
}

func (l *fileLock) unlock() error {
	err := l.file.Close()
	if err != nil {
		os.Remove(l.file.Name())

		return err
	}

	return os.Remove(l.file.Name())
}
