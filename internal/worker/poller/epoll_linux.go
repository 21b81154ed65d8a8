//go:build linux

// Package poller is the level-triggered readiness notifier the worker
// runtime's readiness loop waits on (spec.md §4.3). It wraps
// golang.org/x/sys/unix's epoll bindings directly rather than the
// stdlib net poller, because the spec requires recovering an opaque
// per-fd tag from the notifier on wakeup — exactly epoll_event.data —
// which net.Conn/net.Listener do not expose. Grounded on the
// epoll-readiness-loop shape used by the pack's gaio watcher
// (socket515-gaio / RTradeLtd-gaio, watcher.go).
package poller

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/wstatus"
)

// WaitTimeout bounds each readiness-loop iteration (spec.md §4.3
// "bounded wait of <=10ms per iteration so the heartbeat clock remains
// responsive").
const WaitTimeout = 10 * time.Millisecond

// Events mirrors the subset of epoll event bits the readiness loop
// inspects.
type Events uint32

const (
	EventRead  Events = unix.EPOLLIN
	EventWrite Events = unix.EPOLLOUT
	EventError Events = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLPRI
)

// Poller is a single epoll instance owned by one worker.
type Poller struct {
	fd int
}

func New() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, wstatus.IOErrorf("poller.New", err)
	}
	return &Poller{fd: fd}, nil
}

func (p *Poller) Close() error {
	return unix.Close(p.fd)
}

// Add registers fd for ev, tagging the event with tag so Wait can hand
// the caller back its own association without a lookup (spec.md §4.3
// "recovers the associated Task from the notifier's opaque tag").
func (p *Poller) Add(fd uintptr, ev Events, tag uint64) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, ev, tag)
}

func (p *Poller) Modify(fd uintptr, ev Events, tag uint64) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, ev, tag)
}

func (p *Poller) Remove(fd uintptr) error {
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return wstatus.IOErrorf("poller.Remove", err)
	}
	return nil
}

func (p *Poller) ctl(op int, fd uintptr, ev Events, tag uint64) error {
	evt := unix.EpollEvent{Events: uint32(ev) | uint32(EventError)}
	setData(&evt, tag)
	if err := unix.EpollCtl(p.fd, op, int(fd), &evt); err != nil {
		return wstatus.IOErrorf("poller.ctl", err)
	}
	return nil
}

// setData/getData pack the 64-bit epoll_data_t union into EpollEvent's
// Fd+Pad fields, which the x/sys/unix binding exposes as two
// contiguous int32s rather than the raw union. Standard trick for
// carrying an opaque tag (here: a task's shard id + descriptor, packed
// by internal/worker's encodeTag) through epoll without a side-table
// lookup.
func setData(evt *unix.EpollEvent, tag uint64) {
	*(*uint64)(unsafe.Pointer(&evt.Fd)) = tag
}

func getData(evt *unix.EpollEvent) uint64 {
	return *(*uint64)(unsafe.Pointer(&evt.Fd))
}

// Ready is one fired event: the tag registered at Add time, and the
// event bits observed.
type Ready struct {
	Tag    uint64
	Events Events
}

// Wait blocks up to timeoutMs (spec.md §4.3 "bounded wait of <=10ms per
// iteration so the heartbeat clock remains responsive") and returns the
// fired events in FIFO order (spec.md §5 ordering guarantee).
func (p *Poller) Wait(timeoutMs int, out []unix.EpollEvent) ([]Ready, error) {
	n, err := unix.EpollWait(p.fd, out, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, wstatus.IOErrorf("poller.Wait", err)
	}
	ready := make([]Ready, 0, n)
	for i := 0; i < n; i++ {
		ready = append(ready, Ready{Tag: getData(&out[i]), Events: Events(out[i].Events)})
	}
	return ready, nil
}
