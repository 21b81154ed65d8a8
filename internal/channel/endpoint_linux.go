//go:build linux

package channel

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/wstatus"
)

// NewSocketpair creates a channel endpoint pair over AF_UNIX
// SOCK_STREAM, matching wChannelSocket::Open in original_source
// (socketpair, then O_NONBLOCK + FD_CLOEXEC on both ends).
func NewSocketpair(registry *Registry) (local, peer *Endpoint, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, wstatus.IOErrorf("channel.NewSocketpair", err)
	}

	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, nil, wstatus.IOErrorf("channel.NewSocketpair, SetNonblock", err)
		}
		unix.CloseOnExec(fd)
	}

	localFile := os.NewFile(uintptr(fds[0]), "wnet-channel-local")
	peerFile := os.NewFile(uintptr(fds[1]), "wnet-channel-peer")
	return NewEndpoint(localFile, registry), NewEndpoint(peerFile, registry), nil
}

func isRetryable(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) || errors.Is(err, unix.EWOULDBLOCK)
}

// sendWithFD attaches fd as SCM_RIGHTS ancillary data on the write that
// carries a CHANNEL_OPEN record, matching wChannelSocket::SendBytes's
// cmsg construction for CHANNEL_REQ_OPEN.
func (e *Endpoint) sendWithFD(data []byte, fd int32) (int, error) {
	sc, err := e.file.SyscallConn()
	if err != nil {
		return 0, wstatus.IOErrorf("channel.SendBytes, SyscallConn", err)
	}

	rights := unix.UnixRights(int(fd))
	var n int
	var sendErr error
	ctrlErr := sc.Write(func(rawFD uintptr) bool {
		sendErr = unix.Sendmsg(int(rawFD), data, rights, nil, 0)
		if sendErr != nil {
			if isRetryable(sendErr) {
				return false // ask runtime poller to wait for writability, retry
			}
			return true
		}
		n = len(data)
		return true
	})
	if ctrlErr != nil {
		return 0, wstatus.IOErrorf("channel.SendBytes, raw write", ctrlErr)
	}
	if sendErr != nil {
		return 0, wstatus.IOErrorf("channel.SendBytes, sendmsg", sendErr)
	}
	return n, nil
}

// recvFull reads exactly len(buf) bytes from the channel, returning any
// single descriptor delivered as ancillary data alongside the first
// chunk (or -1 if none arrived). Matches wChannelSocket::RecvBytes.
func (e *Endpoint) recvFull(buf []byte) (int32, error) {
	sc, err := e.file.SyscallConn()
	if err != nil {
		return -1, wstatus.IOErrorf("channel.RecvBytes, SyscallConn", err)
	}

	fd := int32(-1)
	off := 0
	for off < len(buf) {
		var n int
		var oob []byte
		var recvErr error
		ctrlErr := sc.Read(func(rawFD uintptr) bool {
			oobBuf := make([]byte, unix.CmsgSpace(4))
			var oobn int
			n, oobn, _, _, recvErr = unix.Recvmsg(int(rawFD), buf[off:], oobBuf, 0)
			if recvErr != nil {
				if isRetryable(recvErr) {
					return false
				}
				return true
			}
			oob = oobBuf[:oobn]
			return true
		})
		if ctrlErr != nil {
			return -1, wstatus.IOErrorf("channel.RecvBytes, raw read", ctrlErr)
		}
		if recvErr != nil {
			return -1, wstatus.IOErrorf("channel.RecvBytes, recvmsg", recvErr)
		}
		if n == 0 {
			return -1, ErrPeerClosed
		}
		if off == 0 && len(oob) > 0 {
			if got, ok := parseOneRight(oob); ok {
				fd = got
			}
		}
		off += n
	}
	return fd, nil
}

func parseOneRight(oob []byte) (int32, bool) {
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return -1, false
	}
	for _, scm := range scms {
		fds, err := unix.ParseUnixRights(&scm)
		if err != nil || len(fds) != 1 {
			continue
		}
		return int32(fds[0]), true
	}
	return -1, false
}
