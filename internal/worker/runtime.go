package worker

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/wnetio/wnet/internal/channel"
	"github.com/wnetio/wnet/internal/config"
	"github.com/wnetio/wnet/internal/logging"
	"github.com/wnetio/wnet/internal/worker/accepttoken"
	"github.com/wnetio/wnet/internal/worker/heartbeat"
	"github.com/wnetio/wnet/internal/worker/poller"
	"github.com/wnetio/wnet/internal/worker/proto"
	"github.com/wnetio/wnet/internal/worker/task"
)

// channelTag is the inherited master channel's fixed poller tag; every
// other registered fd gets a tag derived from its shard+descriptor via
// encodeTag/decodeTag (tag_linux.go), so Wait's opaque tag recovers the
// right *task.Task without a side lookup (spec.md §4.3 "recovers the
// associated Task from the notifier's opaque tag").
const channelTag uint64 = 0

// Runtime is the Worker Runtime (spec.md §4.3): one process, one
// readiness loop, one sharded task pool. It also implements
// master.Server, so the same type is handed to the supervisor for
// PrepareStart/SingleStart/ListenerFiles.
type Runtime struct {
	cfg      config.Config
	registry *channel.Registry
	protocol task.Protocol

	slot   int
	master *channel.Endpoint // nil in single-process mode
	peers  *peerTable

	poll      *poller.Poller
	pool      *task.Pool
	listeners []*task.Socket
	listenFDs []*os.File // kept open so ListenerFiles can hand them to exec

	token      accepttoken.Token
	holdsToken bool

	clock    *heartbeat.Clock
	hbParams heartbeat.Params

	exiting  atomic.Bool
	exitCode atomic.Int32

	log zerolog.Logger
}

// New constructs a Runtime. master is nil for single-process mode.
func New(cfg config.Config, protocol task.Protocol, master *channel.Endpoint, slot int, registry *channel.Registry) *Runtime {
	if registry == nil {
		registry = channel.CoreRegistry()
	}
	return &Runtime{
		cfg:      cfg,
		registry: registry,
		protocol: protocol,
		slot:     slot,
		master:   master,
		peers:    newPeerTable(),
		pool:     task.NewPool(),
		hbParams: heartbeat.Params{KeepAliveMs: cfg.KeepAliveMs, KeepAliveCnt: cfg.KeepAliveCnt},
		clock:    heartbeat.New(nil),
		log:      logging.For("worker"),
	}
}

// PrepareStart creates the shared listening sockets (spec.md §4.2
// "invoke the server's own PrepareStart"). Called once, in the
// supervisor process, before any worker is spawned.
func (r *Runtime) PrepareStart() error {
	sock, err := openListener(r.cfg.Protocol, r.cfg.Host, r.cfg.Port, r.cfg.LockPath+".sock")
	if err != nil {
		return err
	}
	r.listeners = append(r.listeners, sock)
	r.listenFDs = append(r.listenFDs, os.NewFile(sock.FD, "listener"))
	return nil
}

// ListenerFiles returns the *os.File wrappers for every shared
// listening socket, for master.Launcher to pass via ExtraFiles.
func (r *Runtime) ListenerFiles() []*os.File { return r.listenFDs }

// SingleStart runs the worker loop directly in the calling process,
// with no supervisor and no inherited channel (spec.md §4.2
// "SingleStart... delegate to server's single-process main loop").
// PrepareStart must already have been called (by the Supervisor,
// before SingleStart) so the listening sockets exist exactly once.
func (r *Runtime) SingleStart() error {
	return r.Run()
}

// Run is the worker's main entry point: it installs the worker's
// signal handling, registers the inherited channel descriptor with the
// poller, and runs the readiness loop (spec.md §4.3). It owns process
// lifetime: it returns only once the
// worker should exit, with exitCode set to the process exit status the
// caller (cmd/wnetd) should use.
func (r *Runtime) Run() error {
	installWorkerSignals(r)

	p, err := poller.New()
	if err != nil {
		return err
	}
	r.poll = p
	defer r.poll.Close()

	if r.master != nil {
		if err := r.poll.Add(r.master.File().Fd(), poller.EventRead, channelTag); err != nil {
			return err
		}
	}

	for _, sock := range r.listeners {
		t := &task.Task{Socket: sock, Shard: task.ShardFor(sock.FD)}
		r.pool.Add(t)
	}

	if r.cfg.UseAcceptTurn && r.cfg.WorkerNum > 1 {
		tok, err := accepttoken.Open(r.cfg.LockPath)
		if err != nil {
			return err
		}
		r.token = tok
		defer r.token.Close()
	} else {
		// No accept turn-taking: listening sockets stay registered for
		// the worker's whole life.
		for _, sock := range r.listeners {
			if err := r.poll.Add(sock.FD, poller.EventRead, encodeTag(task.ShardFor(sock.FD), sock.FD)); err != nil {
				return err
			}
		}
	}

	events := make([]unix.EpollEvent, 64)
	for !r.exiting.Load() {
		r.maybeAcquireToken()

		ready, err := r.poll.Wait(int(poller.WaitTimeout.Milliseconds()), events)
		if err != nil {
			r.log.Error().Err(err).Msg("poller wait failed")
			continue
		}

		for _, ev := range ready {
			r.dispatch(ev)
		}

		r.maybeReleaseToken()

		if r.clock.CheckTick() {
			r.sweepHeartbeats()
			r.reportStats()
		}
	}

	if r.exitCode.Load() == 2 {
		r.processExit()
	}
	return nil
}

// ExitCode reports the process exit status cmd/wnetd should use after
// Run returns (0 = clean QUIT, 2 = TERMINATE/do-not-respawn, spec.md
// §6 "Exit codes").
func (r *Runtime) ExitCode() int { return int(r.exitCode.Load()) }

// dispatch implements the readiness loop's per-event branching
// (spec.md §4.3 "Readiness loop"): channel events, listening sockets,
// connected sockets.
func (r *Runtime) dispatch(ev poller.Ready) {
	if ev.Tag == channelTag {
		if ev.Events&poller.EventError != 0 {
			r.exiting.Store(true)
			r.exitCode.Store(2)
			return
		}
		r.recvControl()
		return
	}

	shardID, fd := decodeTag(ev.Tag)
	t, ok := r.pool.Get(shardID, fd)
	if !ok {
		// Unknown descriptor: evict defensively (spec.md §4.3 case 1).
		r.poll.Remove(fd)
		return
	}

	if ev.Events&poller.EventError != 0 {
		r.evict(t)
		return
	}

	switch t.Socket.State {
	case task.StateListening:
		if ev.Events&poller.EventRead != 0 {
			r.acceptConn(t)
		}
	case task.StateConnected:
		if ev.Events&poller.EventRead != 0 {
			if err := r.taskRecv(t); err != nil && t.Socket.Family != task.FamilyUDP {
				r.evict(t)
				return
			}
		}
		if ev.Events&poller.EventWrite != 0 {
			if t.Out.Len() == 0 {
				r.poll.Modify(t.Socket.FD, poller.EventRead, ev.Tag)
			} else if err := r.taskSend(t); err != nil && t.Socket.Family != task.FamilyUDP {
				r.evict(t)
			}
		}
	}
}

func (r *Runtime) evict(t *task.Task) {
	r.poll.Remove(t.Socket.FD)
	unix.Close(int(t.Socket.FD))
	r.pool.Remove(t)
}

// processExit is the application hook called once before a
// do-not-respawn exit (spec.md §4.3 "Graceful exit").
func (r *Runtime) processExit() {
	r.log.Info().Int("slot", r.slot).Msg("worker exiting")
}

func (r *Runtime) maybeAcquireToken() {
	if r.token == nil || r.holdsToken {
		return
	}
	ok, err := r.token.TryAcquire()
	if err != nil {
		r.log.Warn().Err(err).Msg("accept token try-acquire failed")
		return
	}
	if !ok {
		return
	}
	r.holdsToken = true
	for _, sock := range r.listeners {
		r.poll.Add(sock.FD, poller.EventRead, encodeTag(task.ShardFor(sock.FD), sock.FD))
	}
}

func (r *Runtime) maybeReleaseToken() {
	if r.token == nil || !r.holdsToken {
		return
	}
	for _, sock := range r.listeners {
		r.poll.Remove(sock.FD)
	}
	r.holdsToken = false
	_ = r.token.Release()
}

// reportStats sends a StatsReport back to the supervisor over the
// external-payload extension point (spec.md §9), the worker->master
// counterpart to reconfigure's ReloadNotice. No-op in single-process
// mode, where there is no master channel to send on.
func (r *Runtime) reportStats() {
	if r.master == nil {
		return
	}
	payload, err := proto.Encode(proto.Core, proto.StatsReport{Slot: r.slot, ActiveTasks: r.pool.Len()})
	if err != nil {
		r.log.Debug().Err(err).Msg("reportStats: encode failed")
		return
	}
	if _, err := r.master.SendExternal(payload); err != nil {
		r.log.Debug().Err(err).Msg("reportStats: send failed")
	}
}

// sweepHeartbeats implements spec.md §4.3 "Heartbeat scheduler": for
// every Connected TCP/Unix task, evict if already Unconnect; otherwise
// probe once idle past KeepAliveMs and evict once more than
// KeepAliveCnt probes have gone unanswered.
func (r *Runtime) sweepHeartbeats() {
	now := time.Now()
	r.pool.EachShard(func(shardID int, tasks map[uintptr]*task.Task) {
		for fd, t := range tasks {
			if t.Socket.Family != task.FamilyTCP && t.Socket.Family != task.FamilyUnix {
				continue
			}
			if t.Socket.State == task.StateUnconnect {
				r.poll.Remove(fd)
				unix.Close(int(fd))
				delete(tasks, fd)
				continue
			}
			if t.Socket.State != task.StateConnected {
				continue
			}
			if !r.hbParams.Idle(t.Socket.LastSend, now) {
				continue
			}
			t.Socket.HeartbeatsOut++
			t.Out.WriteByte(0) // minimal keepalive probe byte
			r.poll.Modify(fd, poller.EventRead|poller.EventWrite, encodeTag(shardID, fd))
			if r.hbParams.Exhausted(t.Socket.HeartbeatsOut) {
				r.poll.Remove(fd)
				unix.Close(int(fd))
				delete(tasks, fd)
			}
		}
	})
}
