//go:build linux

package rangeio

import "golang.org/x/sys/unix"

// fadviseWillNeed hints to the kernel that the byte range is about to be
// read, so read-ahead can start before the blocking read is issued.
// Best-effort: errors are silently ignored.
func fadviseWillNeed(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_WILLNEED)
}

// fadviseSequential hints to the kernel that the byte range will be read
// front to back, raising read-ahead for large coalesced spans.
// Best-effort: errors are silently ignored.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
