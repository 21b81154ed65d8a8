//go:build linux

package master

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/wnetio/wnet/internal/wstatus"
)

// execLauncher realizes Launcher by re-executing the current binary
// with a "--worker" marker argument, the way porkg's internal/worker/linux.go
// New() re-execs itself rather than calling a bare fork(2). The peer
// end of the control channel is passed as the worker's first extra
// file (fd 3), matching channel/endpoint_linux.go's NewSocketpair
// pairing. Unlike porkg, no user/pid/mount namespace is requested:
// spec.md's workers are plain sibling processes, not sandboxed jobs.
type execLauncher struct {
	// Args are appended after "--worker <slot>", e.g. the parsed
	// config path, so the re-exec'd process can rebuild its Config.
	Args []string
}

// NewExecLauncher returns the default Launcher used by cmd/wnetd.
func NewExecLauncher(extraArgs ...string) Launcher {
	return &execLauncher{Args: extraArgs}
}

func (l *execLauncher) Launch(slot int, peer *os.File, listeners []*os.File) (*os.Process, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, wstatus.IOErrorf("execLauncher.Launch, os.Executable", err)
	}

	args := append([]string{"--worker", strconv.Itoa(slot)}, l.Args...)
	cmd := exec.Command(exe, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// fd 3 is always the channel peer; fd 4.. are the shared listening
	// sockets every worker inherits, the exec-based stand-in for what
	// fork(2) gave the original for free.
	cmd.ExtraFiles = append([]*os.File{peer}, listeners...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		// Its own process group so the supervisor's terminal signals
		// (e.g. Ctrl-C at the shell) don't also land on workers before
		// the supervisor has a chance to fan them out deliberately.
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, wstatus.IOErrorf(fmt.Sprintf("execLauncher.Launch, slot=%d", slot), err)
	}
	return cmd.Process, nil
}
