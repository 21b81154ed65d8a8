package master

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wnetio/wnet/internal/channel"
	"github.com/wnetio/wnet/internal/config"
	"github.com/wnetio/wnet/internal/logging"
	"github.com/wnetio/wnet/internal/worker/proto"
	"github.com/wnetio/wnet/internal/wstatus"
)

// pollInterval bounds how long the supervisor loop can go between
// flag inspections (spec.md §4.2 "examined after a bounded suspend").
const pollInterval = 20 * time.Millisecond

// terminateInitialDelay/terminateKillAfter implement spec.md §4.2's
// "initial 50 ms, doubling on each iteration... once delay > 1000 ms,
// escalate to kill(KILL)".
const (
	terminateInitialDelay = 50 * time.Millisecond
	terminateKillAfter     = 1000 * time.Millisecond
)

// Server is the collaborator that owns listening-socket setup and the
// worker-side main loop; internal/worker.Runtime satisfies this.
// ListenerFiles exposes the shared listening sockets PrepareStart
// creates once, so every (re)spawned worker can inherit the *same*
// sockets via exec's ExtraFiles — the exec-based stand-in for what
// fork(2) gives for free (spec.md §9 "fork() for workers").
type Server interface {
	PrepareStart() error
	SingleStart() error
	ListenerFiles() []*os.File
}

// Launcher realizes one (re)spawn: given a slot, the peer end of a
// freshly-created control channel, and the shared listener files, it
// starts the worker process and hands back an *os.Process to
// wait/signal. Grounded on porkg's internal/worker/linux.go New(),
// adapted from a pipe pair + namespace re-exec into a
// socketpair-channel + plain re-exec.
type Launcher interface {
	Launch(slot int, peer *os.File, listeners []*os.File) (*os.Process, error)
}

// Supervisor is the Master Supervisor (spec.md §4.2): a single
// goroutine that owns the process table, reacts to coalesced signal
// flags, and fans control messages out to workers.
type Supervisor struct {
	cfg      config.Config
	server   Server
	launcher Launcher
	registry *channel.Registry
	table    *processTable
	flags    signalFlags
	log      zerolog.Logger

	listenerFiles []*os.File

	terminating bool
	quitting    bool
	delay       time.Duration
	lastSend    time.Time
	done        bool
}

// New builds a Supervisor. registry may be nil to use channel.CoreRegistry().
func New(cfg config.Config, server Server, launcher Launcher, registry *channel.Registry) *Supervisor {
	if registry == nil {
		registry = channel.CoreRegistry()
	}
	return &Supervisor{
		cfg:      cfg,
		server:   server,
		launcher: launcher,
		registry: registry,
		table:    newProcessTable(),
		log:      logging.For("master"),
	}
}

// PrepareStart creates listening sockets (via the Server collaborator)
// before any worker is forked, so every worker inherits them (spec.md
// §4.2 "PrepareStart").
func (s *Supervisor) PrepareStart() error {
	if err := s.server.PrepareStart(); err != nil {
		return err
	}
	s.listenerFiles = s.server.ListenerFiles()
	return nil
}

// SingleStart runs single-process mode: pid file + signals + delegate
// to the server's own main loop (spec.md §4.2 "SingleStart").
func (s *Supervisor) SingleStart() error {
	if err := s.createPidFile(); err != nil {
		return err
	}
	defer s.deletePidFile()

	sigCh := s.installSignals()
	defer s.stopSignals(sigCh)

	return s.server.SingleStart()
}

// MasterStart enters supervision mode (spec.md §4.2 "MasterStart"):
// pid file, signal mask, process table, workerNum respawnable workers,
// then the signal-driven state machine until shutdown.
func (s *Supervisor) MasterStart() error {
	if err := s.createPidFile(); err != nil {
		return err
	}

	sigCh := s.installSignals()
	defer s.stopSignals(sigCh)

	workerNum := s.cfg.WorkerNum
	if workerNum <= 0 {
		workerNum = 1
	}
	for i := 0; i < workerNum; i++ {
		if _, err := s.SpawnWorker(Respawn, -1); err != nil {
			return fmt.Errorf("master: initial spawn: %w", err)
		}
	}

	for !s.done {
		s.handleSignal()
		if !s.done {
			time.Sleep(pollInterval)
		}
	}
	return nil
}

// handleSignal is one iteration of the state machine (spec.md §4.2's
// table): reap, then reconfigure, then quit, then terminate, each only
// once per set flag, followed by the shutdown check.
func (s *Supervisor) handleSignal() {
	if s.flags.takeReap() {
		s.reapChildren()
	}
	if s.flags.takeReconfigure() {
		s.reconfigure()
	}
	if s.flags.takeQuit() && !s.quitting {
		s.quitting = true
		s.sendAll(func() channel.Message { return &channel.Quit{} }, 0)
	}
	if s.flags.terminate.Load() && !s.terminating {
		s.terminating = true
	}
	if s.terminating {
		s.stepTerminate()
	}
	if (s.terminating || s.quitting) && !s.anyLive() {
		s.shutdown()
	}
	s.clearJustSpawn()
}

// clearJustSpawn lifts the just_spawn suppression after it has had one
// full handleSignal pass to do its job (spec.md §3: just_spawn
// "suppresses the next signal cycle", not every cycle thereafter).
// Workers spawned earlier in this same pass — by reconfigure or a
// respawn inside reapChildren — are skipped by eligible() during this
// pass's sendAll/stepTerminate/killAll, then become normally
// addressable starting next pass.
func (s *Supervisor) clearJustSpawn() {
	for _, w := range s.table.entries {
		if w != nil && w.JustSpawn() {
			w.flags.justSpawn.Store(false)
		}
	}
}

// stepTerminate drives the exponential-backoff TERMINATE escalation
// (spec.md §4.2 "terminate" row). Go has no literal re-armed SIGALRM
// here (see signals_linux.go); the same shape is obtained by comparing
// wall-clock deltas against s.delay on every handleSignal call.
func (s *Supervisor) stepTerminate() {
	now := time.Now()
	if s.delay == 0 {
		s.delay = terminateInitialDelay
		s.lastSend = now
		s.sendAll(func() channel.Message { return &channel.Terminate{} }, syscall.SIGTERM)
		return
	}
	if now.Sub(s.lastSend) < s.delay {
		return
	}
	s.lastSend = now
	if s.delay > terminateKillAfter {
		s.killAll(syscall.SIGKILL)
		return
	}
	s.sendAll(func() channel.Message { return &channel.Terminate{} }, syscall.SIGTERM)
	s.delay *= 2
}

// eligible reports whether w should receive a fan-out/escalation
// message: live, not yet exited, not detached, not just spawned, not
// already marked exiting (spec.md §3 invariants, §4.2 "every eligible
// worker").
func eligible(w *WorkerEntry) bool {
	return w != nil && w.live() && !w.Exited() && !w.Detached() && !w.JustSpawn() && !w.Exiting()
}

// sendAll sends mk() on-channel to every eligible worker, marking it
// exiting; if the channel send fails, it falls back to kill(sig) when
// sig != 0 (spec.md §4.2 "if a worker cannot receive on-channel, fall
// back to kill(TERM)").
func (s *Supervisor) sendAll(mk func() channel.Message, sig syscall.Signal) {
	for _, w := range s.table.entries {
		if !eligible(w) {
			continue
		}
		w.flags.exiting.Store(true)
		if _, err := w.Local.SendBytes(mk()); err != nil {
			s.log.Warn().Int("slot", w.Slot).Err(err).Msg("control send failed, falling back to kill")
			if sig != 0 && w.proc != nil {
				_ = w.proc.Signal(sig)
			}
		}
	}
}

// killAll signals every live, non-exited worker directly (spec.md
// §4.2 "escalate to kill(KILL)" once the backoff delay exceeds the
// threshold).
func (s *Supervisor) killAll(sig syscall.Signal) {
	for _, w := range s.table.entries {
		if w == nil || !w.live() || w.Exited() {
			continue
		}
		if w.proc != nil {
			_ = w.proc.Signal(sig)
		}
	}
}

func (s *Supervisor) anyLive() bool {
	for _, w := range s.table.entries {
		if w != nil && w.live() && !w.Exited() {
			return true
		}
	}
	return false
}

func (s *Supervisor) shutdown() {
	s.deletePidFile()
	s.done = true
}

// reconfigure implements SIGHUP reload (spec.md §4.2 "reconfigure"):
// spawn a replacement cohort with JustRespawn, sleep 100ms to let them
// settle, then send TERMINATE to the previous cohort.
func (s *Supervisor) reconfigure() {
	oldSlots := make([]int, 0, len(s.table.entries))
	for i, w := range s.table.entries {
		if w != nil && w.live() && !w.Exited() && !w.Detached() {
			oldSlots = append(oldSlots, i)
		}
	}

	workerNum := s.cfg.WorkerNum
	if workerNum <= 0 {
		workerNum = 1
	}
	for i := 0; i < workerNum; i++ {
		if _, err := s.SpawnWorker(JustRespawn, -1); err != nil {
			s.log.Error().Err(err).Msg("reconfigure: spawn replacement failed")
		}
	}

	time.Sleep(100 * time.Millisecond)

	notice, err := proto.Encode(proto.Core, proto.ReloadNotice{Reason: "SIGHUP reconfigure"})
	if err != nil {
		s.log.Warn().Err(err).Msg("reconfigure: encode ReloadNotice failed")
	}

	for _, slot := range oldSlots {
		w := s.table.entries[slot]
		if w == nil || w.Exited() || w.Exiting() {
			continue
		}
		if notice != nil {
			if _, err := w.Local.SendExternal(notice); err != nil {
				s.log.Warn().Int("slot", w.Slot).Err(err).Msg("reconfigure: ReloadNotice send failed")
			}
		}
		w.flags.exiting.Store(true)
		if _, err := w.Local.SendBytes(&channel.Terminate{}); err != nil {
			if w.proc != nil {
				_ = w.proc.Signal(syscall.SIGTERM)
			}
		}
	}
}

// SpawnWorker allocates a slot (explicitSlot, or the lowest free slot
// when negative), opens a control channel, launches the worker
// process, applies the respawn policy, and fans out OPEN to every
// other living, non-exited, non-detached worker (spec.md §4.2
// "SpawnWorker").
func (s *Supervisor) SpawnWorker(t RespawnType, explicitSlot int) (*WorkerEntry, error) {
	slot := explicitSlot
	if slot < 0 {
		free, ok := s.table.firstFreeSlot()
		if !ok {
			return nil, wstatus.New(wstatus.InvalidArgument, "SpawnWorker", fmt.Errorf("process table full"))
		}
		slot = free
	}

	local, peer, err := channel.NewSocketpair(s.registry)
	if err != nil {
		return nil, err
	}

	proc, err := s.launcher.Launch(slot, peer.File(), s.listenerFiles)
	peer.Close() // parent's copy of the child's end; child holds its own dup.
	if err != nil {
		local.Close()
		return nil, wstatus.IOErrorf("SpawnWorker, launch", err)
	}

	e := s.table.entries[slot]
	e.PID = proc.Pid
	e.proc = proc
	e.Local = local
	e.flags.exited.Store(false)
	e.flags.exiting.Store(false)
	e.applyRespawnType(t)

	s.log.Info().Int("slot", slot).Int("pid", proc.Pid).Msg("worker spawned")

	s.fanOutOpen(e)
	return e, nil
}

// fanOutOpen hands every other living, non-detached worker a duplicate
// of the new worker's channel descriptor, the way a shared SOCK_STREAM
// endpoint lets two processes reach the same peer once one holds a
// dup'd fd to it (spec.md §1 "broadcasts the new worker's channel
// descriptor to all living workers via ancillary-data messages so
// workers can address one another").
func (s *Supervisor) fanOutOpen(e *WorkerEntry) {
	for i, w := range s.table.entries {
		if i == e.Slot || w == nil || !w.live() || w.Exited() || w.Detached() {
			continue
		}
		msg := &channel.Open{Slot: uint32(e.Slot), PID: int32(e.PID), Fd: int32(e.Local.File().Fd())}
		if _, err := w.Local.SendBytes(msg); err != nil {
			s.log.Warn().Int("slot", w.Slot).Err(err).Msg("fan-out OPEN failed")
		}
	}
}

// fanOutClose tells every other living, non-detached worker that slot
// has gone away (spec.md §8 scenario 3).
func (s *Supervisor) fanOutClose(e *WorkerEntry) {
	for i, w := range s.table.entries {
		if i == e.Slot || w == nil || !w.live() || w.Exited() || w.Detached() {
			continue
		}
		msg := &channel.Close{Slot: uint32(e.Slot), PID: int32(e.PID)}
		if _, err := w.Local.SendBytes(msg); err != nil {
			s.log.Warn().Int("slot", w.Slot).Err(err).Msg("fan-out CLOSE failed")
		}
	}
}

func (s *Supervisor) findByPID(pid int) *WorkerEntry {
	for _, w := range s.table.entries {
		if w != nil && w.PID == pid {
			return w
		}
	}
	return nil
}

// reapChildren drains SIGCHLD (spec.md §4.2 "ReapChildren"): for each
// exited child, fan out CLOSE, clear respawn if exit code == 2, and
// respawn into the same slot if still eligible.
func (s *Supervisor) reapChildren() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		w := s.findByPID(pid)
		if w == nil {
			continue
		}

		w.ExitCode = ws.ExitStatus()
		w.Signaled = ws.Signaled()
		if w.Signaled {
			w.ExitSignal = ws.Signal()
		}
		w.flags.exited.Store(true)

		s.log.Info().Int("slot", w.Slot).Int("pid", pid).Int("exitCode", w.ExitCode).Msg("worker exited")

		if w.ExitCode == 2 {
			// spec.md §4.2 "status 2 signals do not respawn".
			w.flags.respawn.Store(false)
		}

		s.fanOutClose(w)

		shouldRespawn := w.Respawn() && !s.terminating && !s.quitting
		slot := w.Slot
		w.PID = -1
		w.Local.Close()
		w.Local = nil
		w.proc = nil

		if shouldRespawn {
			if _, err := s.SpawnWorker(Respawn, slot); err != nil {
				s.log.Error().Err(err).Int("slot", slot).Msg("respawn failed")
			}
		}
	}
}

// SignalWorker sends QUIT or TERMINATE to a single worker on-channel,
// falling back to kill() (spec.md §4.2 "SignalWorker").
func (s *Supervisor) SignalWorker(slot int, quit bool) error {
	w := s.table.entries[slot]
	if !eligible(w) {
		return wstatus.InvalidArgumentf("SignalWorker", "slot not eligible")
	}
	w.flags.exiting.Store(true)
	var msg channel.Message
	sig := syscall.SIGTERM
	if quit {
		msg = &channel.Quit{}
		sig = syscall.SIGQUIT
	} else {
		msg = &channel.Terminate{}
	}
	if _, err := w.Local.SendBytes(msg); err != nil {
		if w.proc != nil {
			return w.proc.Signal(sig)
		}
		return err
	}
	return nil
}

func (s *Supervisor) createPidFile() error {
	if s.cfg.PidPath == "" {
		return nil
	}
	if err := os.WriteFile(s.cfg.PidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return wstatus.IOErrorf("createPidFile", err)
	}
	return nil
}

func (s *Supervisor) deletePidFile() error {
	if s.cfg.PidPath == "" {
		return nil
	}
	if err := os.Remove(s.cfg.PidPath); err != nil && !os.IsNotExist(err) {
		return wstatus.IOErrorf("deletePidFile", err)
	}
	return nil
}

// SignalProcess reads pidPath and sends sig to the named process — the
// "-s stop|quit|reload|reopen" CLI helper (spec.md §10, original
// wMaster::SignalProcess).
func SignalProcess(pidPath string, sig syscall.Signal) error {
	b, err := os.ReadFile(pidPath)
	if err != nil {
		return wstatus.IOErrorf("SignalProcess, read pidfile", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return wstatus.InvalidArgumentf("SignalProcess", "malformed pidfile contents")
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return wstatus.IOErrorf("SignalProcess, kill", err)
	}
	return nil
}
