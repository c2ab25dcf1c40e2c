//go:build windows
// +build windows

package certdir

import "os"

// fileID returns 0 on platforms without a stable inode: the tag then relies
// on the mtime and the size only.
func fileID(fi os.FileInfo) uint64 {
	return 0
}
