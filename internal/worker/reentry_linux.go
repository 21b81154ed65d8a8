//go:build linux

package worker

import (
	"os"
	"strconv"

	"github.com/wnetio/wnet/internal/channel"
	"github.com/wnetio/wnet/internal/config"
	"github.com/wnetio/wnet/internal/worker/task"
)

// firstExtraFD is where exec's ExtraFiles land: fd 0-2 are
// stdin/stdout/stderr, so the channel peer is fd 3 and any shared
// listening sockets follow at fd 4, 5, ... (spec.md §9 "passing the
// peer channel descriptor on a well-known inherited slot").
const firstExtraFD = 3

// DetectReentry inspects argv for the "--worker <slot>" marker
// master.execLauncher's Launch uses, mirroring porkg's isWorker/isJob
// flag check in internal/worker/linux.go.
func DetectReentry(args []string) (slot int, ok bool) {
	if len(args) < 2 || args[0] != "--worker" {
		return 0, false
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Reenter rebuilds a Runtime in a freshly re-exec'd worker process:
// the channel peer at fd 3, and one shared listener per subsequent fd
// (spec.md §4.3 "registers its channel descriptor... with the
// readiness loop").
func Reenter(cfg config.Config, protocol task.Protocol, slot int) *Runtime {
	registry := channel.CoreRegistry()
	master := channel.NewEndpoint(os.NewFile(firstExtraFD, "wnet-master-channel"), registry)

	r := New(cfg, protocol, master, slot, registry)

	for fd := firstExtraFD + 1; ; fd++ {
		f := os.NewFile(uintptr(fd), "wnet-listener")
		if f == nil {
			break
		}
		if _, err := f.Stat(); err != nil {
			break
		}
		r.listeners = append(r.listeners, &task.Socket{FD: f.Fd(), Family: familyFor(cfg.Protocol), State: task.StateListening})
	}
	return r
}

func familyFor(protocol string) task.Family {
	switch protocol {
	case "TCP":
		return task.FamilyTCP
	case "UDP":
		return task.FamilyUDP
	case "UNIX":
		return task.FamilyUnix
	case "HTTP":
		return task.FamilyHTTP
	default:
		return task.FamilyTCP
	}
}
