//go:build linux

// Package daemon supplies the out-of-scope "daemonization helper"
// collaborator (spec.md §1): process-title setting and detaching via a
// re-exec into a new session, kept separate from internal/master so
// the core's process table knows nothing about them.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/wstatus"
)

// SetProcTitle overwrites argv[0] in place so `ps`/`top` show title
// instead of the binary's invocation line (spec.md §10, original
// wMaster's process-title trick via argv overwrite). The title is
// truncated to the original length of the argv strings (joined by their
// separators); the environment block is not used.
func SetProcTitle(title string) error {
	argv0 := os.Args[0]
	limit := len(argv0)
	for _, a := range os.Args[1:] {
		limit += 1 + len(a)
	}
	if len(title) > limit {
		title = title[:limit]
	}

	dst := unsafe.Slice(unsafe.StringData(argv0), limit)
	n := copy(dst, title)
	for i := n; i < limit; i++ {
		dst[i] = 0
	}
	return nil
}

// Daemonize detaches the process from its controlling terminal by
// re-executing itself with stdio redirected to /dev/null and a new
// session (setsid), the portable-enough stand-in for the classic
// double fork when only os/exec is available (spec.md §10 "daemon"
// config flag).
func Daemonize(markerEnv string) error {
	if os.Getenv(markerEnv) == "1" {
		if _, err := unix.Setsid(); err != nil {
			return wstatus.IOErrorf("Daemonize, setsid", err)
		}
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return wstatus.IOErrorf("Daemonize, os.Executable", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return wstatus.IOErrorf("Daemonize, open devnull", err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=1", markerEnv))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return wstatus.IOErrorf("Daemonize, start", err)
	}
	os.Exit(0)
	return nil
}
