//go:build linux

package master

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// signalFlags is the atomic bitmask the signal goroutine sets and the
// supervisor loop reads-and-clears (spec.md §9 "Global signal flags...
// model as an atomic bitmask owned by the supervisor, with handlers
// performing only atomic OR operations"). Go has no direct equivalent
// of installing a C signal handler that merely sets a sig_atomic_t, but
// os/signal's channel delivery from a dedicated goroutine gives the
// same net effect: the flags are the only state the supervisor's main
// loop reads.
type signalFlags struct {
	reap        atomic.Bool
	terminate   atomic.Bool
	quit        atomic.Bool
	reconfigure atomic.Bool
}

func (f *signalFlags) takeReap() bool        { return f.reap.CompareAndSwap(true, false) }
func (f *signalFlags) takeQuit() bool        { return f.quit.CompareAndSwap(true, false) }
func (f *signalFlags) takeReconfigure() bool { return f.reconfigure.CompareAndSwap(true, false) }

// installSignals mirrors wMaster::InitSignals's handler table (spec.md
// §4.2's mask {CHLD,ALRM,IO,QUIT,INT,TERM,HUP,USR1}). ALRM and IO have
// no flag of their own here: the shutdown backoff is driven by wall-clock
// comparisons inside stepTerminate rather than a literal re-armed
// SIGALRM (Go has no portable sub-second setitimer binding in the
// corpus), and SIGIO's only job in the original — waking up a blocking
// read on the channel fd — is unnecessary since the channel is already
// non-blocking and driven by the poller.
func (s *Supervisor) installSignals() chan os.Signal {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch,
		syscall.SIGCHLD,
		syscall.SIGQUIT,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
		syscall.SIGUSR1,
	)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGCHLD:
				s.flags.reap.Store(true)
			case syscall.SIGQUIT:
				s.flags.quit.Store(true)
			case syscall.SIGINT, syscall.SIGTERM:
				s.flags.terminate.Store(true)
			case syscall.SIGHUP:
				s.flags.reconfigure.Store(true)
			case syscall.SIGUSR1:
				s.log.Info().Msg("SIGUSR1 received; log rotation is the deployer's responsibility")
			}
		}
	}()
	return ch
}

func (s *Supervisor) stopSignals(ch chan os.Signal) {
	signal.Stop(ch)
	close(ch)
}
