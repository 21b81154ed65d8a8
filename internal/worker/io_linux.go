//go:build linux

package worker

import (
	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/worker/poller"
	"github.com/wnetio/wnet/internal/worker/task"
	"github.com/wnetio/wnet/internal/wstatus"
)

// recvBufSize matches original_source's per-read chunk size.
const recvBufSize = 4096

// taskRecv reads what's available into t.In and invokes the
// protocol's OnData hook (spec.md §4.3 "read-ready -> TaskRecv").
func (r *Runtime) taskRecv(t *task.Task) error {
	buf := make([]byte, recvBufSize)
	n, err := unix.Read(int(t.Socket.FD), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		return wstatus.IOErrorf("taskRecv", err)
	}
	if n == 0 {
		return wstatus.IOErrorf("taskRecv", unix.ECONNRESET)
	}
	t.In.Write(buf[:n])
	t.Socket.Touch(false)
	t.Socket.HeartbeatsOut = 0 // the peer answered; probe count restarts

	if t.Protocol != nil {
		if err := t.Protocol.OnData(t); err != nil {
			return err
		}
	}
	if t.Out.Len() > 0 {
		r.poll.Modify(t.Socket.FD, poller.EventRead|poller.EventWrite, encodeTag(t.Shard, t.Socket.FD))
		return r.taskSend(t)
	}
	return nil
}

// taskSend flushes t.Out (spec.md §4.3 "write-ready -> TaskSend").
func (r *Runtime) taskSend(t *task.Task) error {
	b := t.Out.Bytes()
	if len(b) == 0 {
		return nil
	}
	n, err := unix.Write(int(t.Socket.FD), b)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		return wstatus.IOErrorf("taskSend", err)
	}
	t.Out.Next(n)
	t.Socket.Touch(true)
	if t.Out.Len() == 0 {
		r.poll.Modify(t.Socket.FD, poller.EventRead, encodeTag(t.Shard, t.Socket.FD))
	}
	return nil
}
