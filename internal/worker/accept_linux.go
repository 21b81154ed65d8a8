//go:build linux

package worker

import (
	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/worker/poller"
	"github.com/wnetio/wnet/internal/worker/task"
)

// acceptConn implements spec.md §4.3 "AcceptConn": accept, decorate
// the returned descriptor as a Socket, build a Task, register for
// read-readiness, add to the pool, then call Connect. Any failure in
// that chain evicts the would-be task; EAGAIN simply returns to the
// loop.
func (r *Runtime) acceptConn(listening *task.Task) {
	for {
		fd, _, err := unix.Accept4(int(listening.Socket.FD), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			r.log.Warn().Err(err).Msg("accept failed")
			return
		}

		sock := &task.Socket{FD: uintptr(fd), Family: listening.Socket.Family, State: task.StateConnected}
		sock.Touch(false)
		t := &task.Task{Socket: sock, Shard: task.ShardFor(sock.FD), Protocol: r.protocol}
		r.pool.Add(t)

		if err := r.poll.Add(sock.FD, poller.EventRead, encodeTag(t.Shard, sock.FD)); err != nil {
			r.evict(t)
			continue
		}

		if t.Protocol != nil {
			if err := t.Protocol.Connect(t); err != nil {
				r.log.Debug().Err(err).Msg("Connect rejected new task")
				r.evict(t)
				continue
			}
		}
	}
}
