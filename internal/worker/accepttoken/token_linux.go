//go:build linux

// Package accepttoken implements the AcceptToken primitive from spec.md
// §3: a named OS synchronization object that only one worker holds at a
// time, serializing who registers listening sockets for readiness and
// mitigating the accept thundering herd.
package accepttoken

import (
	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/wstatus"
)

// Mode selects the OS primitive backing the token. spec.md §3 calls
// this choice "a build-time constant" ("named semaphore or advisory
// file lock"); this module only implements the flock variant, and
// ModeFlock is the only Mode (see DESIGN.md for why no semaphore
// variant exists).
type Mode int

const ModeFlock Mode = 0

// Token is the accept-mutex handle a worker holds for the duration of
// one loop iteration.
type Token interface {
	// TryAcquire attempts to take the token without blocking. Returns
	// (true, nil) if acquired.
	TryAcquire() (bool, error)
	// Release gives up the token; safe to call even if not held.
	Release() error
	// Close removes the underlying OS object (spec.md §10/original
	// wServer::DeleteAcceptFile: the lock file is unlinked on clean
	// worker shutdown).
	Close() error
}

type flockToken struct {
	path string
	fd   int
	held bool
}

// Open creates (if absent) and opens the well-known lock file at path.
func Open(path string) (Token, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, wstatus.IOErrorf("accepttoken.Open", err)
	}
	return &flockToken{path: path, fd: fd}, nil
}

func (t *flockToken) TryAcquire() (bool, error) {
	if t.held {
		return true, nil
	}
	err := unix.Flock(t.fd, unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		t.held = true
		return true, nil
	}
	if err == unix.EWOULDBLOCK {
		return false, nil
	}
	return false, wstatus.IOErrorf("accepttoken.TryAcquire", err)
}

func (t *flockToken) Release() error {
	if !t.held {
		return nil
	}
	t.held = false
	if err := unix.Flock(t.fd, unix.LOCK_UN); err != nil {
		return wstatus.IOErrorf("accepttoken.Release", err)
	}
	return nil
}

func (t *flockToken) Close() error {
	_ = t.Release()
	if err := unix.Close(t.fd); err != nil {
		return wstatus.IOErrorf("accepttoken.Close", err)
	}
	// Best-effort: a crash holding the token is recovered by the OS
	// releasing the flock on process exit (spec.md §5), so unlinking
	// here is pure housekeeping, not required for correctness.
	_ = unix.Unlink(t.path)
	return nil
}
