//go:build linux

package worker

import "os"

// fdToFile wraps a raw descriptor delivered via SCM_RIGHTS (an OPEN
// record's Fd field, already overwritten by channel.RecvBytes with
// the kernel-delivered descriptor) as an *os.File the peer table can
// own and eventually Close.
func fdToFile(fd int32) *os.File {
	return os.NewFile(uintptr(fd), "wnet-peer")
}
