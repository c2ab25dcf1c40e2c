//go:build !windows
// +build !windows

package certdir

import (
	"os"
	"syscall"
)

// fileID returns the inode of the file, so that a recreated entry produces a
// distinct tag even when its size and mtime collide with the previous one.
func fileID(fi os.FileInfo) uint64 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}

	return st.Ino
}
