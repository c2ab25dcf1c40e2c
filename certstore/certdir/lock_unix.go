//go:build !windows
// +build !windows

package certdir

import (
	"fmt"
	"os"
	"syscall"

	"github.com/rs/xid"
)

// fileLock is a held flock on the lock file of an entry. The lock dies with
// the process, so a crashed writer never wedges the entry.
type fileLock struct {
	file *os.File
}

// tryLockFile attempts to take the advisory lock of the file, creating it
// when needed. It returns false without an error when another process holds
// the lock.
func tryLockFile(name string) (*fileLock, bool, error) {
	file, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, lockPerm)
	if err != nil {
		return nil, false, err
	}

	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK {
		file.Close()

		return nil, false, nil
	}

	if err != nil {
		file.Close()

		return nil, false, err
	}

	// The holder may have released and removed the file between the open and
	// the flock, in which case the lock applies to an orphaned inode. Give
	// up and let the caller retry on the current file.
	fi, err := file.Stat()
	if err != nil {
		file.Close()

		return nil, false, err
	}

	cur, err := os.Stat(name)
	if os.IsNotExist(err) || (err == nil && !os.SameFile(fi, cur)) {
		file.Close()

		return nil, false, nil
	}

	if err != nil {
		file.Close()

		return nil, false, err
	}

	// The content is informational only, for an operator inspecting a busy
	// directory.
	file.Truncate(0)
	fmt.Fprintf(file, "%s %d\n", xid.New(), os.Getpid())

	return &fileLock{file: file}, true, nil
}

// unlock removes the lock file and then releases the lock by closing it.
// Removing first keeps the lock held while the path disappears, so a waiter
// that grabbed this inode in the meantime will notice and retry on a fresh
// file.
func (l *fileLock) unlock() error {
	err := os.Remove(l.file.Name())
	if err != nil {
		l.file.Close()

		return err
	}

	return l.file.Close()
}
