//go:build linux

package worker

import (
	"os"
	"os/signal"
	"syscall"
)

// installWorkerSignals installs the worker's own signal mask (spec.md
// §4.3 "Start() installs its own signal mask"): TERM/QUIT behave like
// their on-channel counterparts as a fallback path for when the
// supervisor escalates to kill() after a failed channel send (spec.md
// §4.2 "fall back to kill(TERM)").
func installWorkerSignals(r *Runtime) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGTERM:
				r.exiting.Store(true)
				r.exitCode.Store(2)
			case syscall.SIGQUIT:
				r.exiting.Store(true)
				r.exitCode.Store(0)
			case syscall.SIGHUP:
				r.log.Info().Msg("SIGHUP received; supervisor drives reload via TERMINATE")
			}
		}
	}()
}
