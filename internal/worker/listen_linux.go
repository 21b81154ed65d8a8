//go:build linux

// Package worker is the Worker Runtime (spec.md §4.3): the
// readiness-notification loop, sharded task pool, accept-mutex
// protocol, heartbeat scheduler, and graceful shutdown inside one
// worker process.
package worker

import (
	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/worker/task"
	"github.com/wnetio/wnet/internal/wstatus"
)

// openListener creates, binds, and listens on a raw non-blocking
// socket for the given protocol, returning a Socket in state
// Listening. Raw syscalls (rather than net.Listen) are used because
// the readiness loop needs the bare descriptor to register with the
// epoll poller and to recover it later via AcceptConn's accept4 call.
func openListener(protocol, host string, port int16, unixPath string) (*task.Socket, error) {
	switch protocol {
	case "TCP":
		return openInet(unix.SOCK_STREAM, task.FamilyTCP, host, port)
	case "UDP":
		return openInet(unix.SOCK_DGRAM, task.FamilyUDP, host, port)
	case "UNIX":
		return openUnix(unixPath)
	case "HTTP":
		// spec.md §6.5: HTTP adapter is a deliberate non-implementation;
		// it listens exactly like TCP and relies on the HTTP Protocol
		// stub to reject requests at the application layer.
		return openInet(unix.SOCK_STREAM, task.FamilyHTTP, host, port)
	default:
		return nil, wstatus.InvalidArgumentf("openListener", "unknown protocol "+protocol)
	}
}

func openInet(sockType int, fam task.Family, host string, port int16) (*task.Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, wstatus.IOErrorf("openInet, socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, wstatus.IOErrorf("openInet, SO_REUSEADDR", err)
	}

	var ip [4]byte
	if addr := parseIPv4(host); addr != nil {
		ip = *addr
	}
	sa := &unix.SockaddrInet4{Port: int(port), Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, wstatus.IOErrorf("openInet, bind", err)
	}
	if sockType == unix.SOCK_STREAM {
		if err := unix.Listen(fd, listenBacklog); err != nil {
			unix.Close(fd)
			return nil, wstatus.IOErrorf("openInet, listen", err)
		}
	}

	return &task.Socket{FD: uintptr(fd), Family: fam, State: task.StateListening}, nil
}

func openUnix(path string) (*task.Socket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, wstatus.IOErrorf("openUnix, socket", err)
	}
	_ = unix.Unlink(path)
	sa := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, wstatus.IOErrorf("openUnix, bind", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, wstatus.IOErrorf("openUnix, listen", err)
	}
	return &task.Socket{FD: uintptr(fd), Family: task.FamilyUnix, State: task.StateListening}, nil
}

// listenBacklog matches original_source's kListenBacklog.
const listenBacklog = 511

func parseIPv4(host string) *[4]byte {
	if host == "" || host == "0.0.0.0" {
		return &[4]byte{0, 0, 0, 0}
	}
	var out [4]byte
	parts := 0
	cur := 0
	idx := 0
	for i := 0; i <= len(host); i++ {
		if i == len(host) || host[i] == '.' {
			if idx >= 4 {
				return nil
			}
			out[idx] = byte(cur)
			idx++
			cur = 0
			parts++
			continue
		}
		c := host[i]
		if c < '0' || c > '9' {
			return nil
		}
		cur = cur*10 + int(c-'0')
	}
	if parts != 4 {
		return nil
	}
	return &out
}
