// Package task implements the Task / TaskPool data model from spec.md
// §3: one Task per active connection, owned exclusively by the worker
// through a sharded pool so the readiness loop only ever locks the
// shard it's currently touching.
package task

import (
	"bytes"
	"sync"
	"time"
)

// Family identifies the socket's address family / protocol.
type Family int

const (
	FamilyTCP Family = iota
	FamilyUnix
	FamilyUDP
	FamilyHTTP
	FamilyChannel
)

func (f Family) String() string {
	switch f {
	case FamilyTCP:
		return "tcp"
	case FamilyUnix:
		return "unix"
	case FamilyUDP:
		return "udp"
	case FamilyHTTP:
		return "http"
	case FamilyChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// State is the Socket's connection state (spec.md §3).
type State int

const (
	StateListening State = iota
	StateConnected
	StateUnconnect
)

// Socket is the generic per-connection descriptor wrapper a Task owns
// exclusively (spec.md §3 "Task owns Socket exclusively").
type Socket struct {
	FD     uintptr
	Family Family
	State  State

	LastSend time.Time
	LastRecv time.Time

	// HeartbeatsOut counts consecutive failed keepalive probes
	// (spec.md §3 HeartbeatClock, §4.3 heartbeat scheduler).
	HeartbeatsOut int
}

func (s *Socket) Touch(send bool) {
	now := time.Now()
	if send {
		s.LastSend = now
	} else {
		s.LastRecv = now
	}
}

// Task is one active connection: a Socket plus in/out buffers and a
// stable shard id assigned once at construction and never recomputed
// (spec.md §9 "shard id... stable... so the same task always lands in
// the same shard throughout its lifetime").
type Task struct {
	Socket *Socket
	Shard  int

	In  bytes.Buffer
	Out bytes.Buffer

	// Protocol is the application-level hook invoked on accept and on
	// each inbound chunk; nil for listening-socket tasks. The master
	// channel is not a Task: it has its own dedicated dispatch
	// (internal/worker/channeltask.go).
	Protocol Protocol
}

// Protocol is the generic contract spec.md §1 leaves to "protocol task
// adapters (TCP / Unix / UDP / HTTP) beyond the generic contract they
// satisfy". It is the only seam between the worker runtime and
// application-level handling.
type Protocol interface {
	// Connect runs once, right after AcceptConn registers the task
	// (the "application-level hello" from spec.md §4.3).
	Connect(t *Task) error
	// OnData runs whenever inbound bytes were appended to t.In by
	// TaskRecv; it consumes what it can from t.In and may append to
	// t.Out to queue a reply.
	OnData(t *Task) error
}

// NumShards is tuned for readers-per-core (spec.md §3).
const NumShards = 10

// ShardFor derives a stable shard id from the descriptor modulo
// NumShards (spec.md §9).
func ShardFor(fd uintptr) int {
	return int(fd % NumShards)
}

// shard is one of NumShards independent task sequences, each with its
// own mutex (spec.md §3 TaskPool).
type shard struct {
	mu    sync.Mutex
	tasks map[uintptr]*Task
}

// Pool is the sharded task pool a worker owns exclusively.
type Pool struct {
	shards [NumShards]shard
}

func NewPool() *Pool {
	p := &Pool{}
	for i := range p.shards {
		p.shards[i].tasks = make(map[uintptr]*Task)
	}
	return p
}

// WithShard runs fn while holding the shard for id, the only place
// Task mutation is allowed to happen from (spec.md §4.3 "All mutation
// of a Task occurs under its shard's mutex").
func (p *Pool) WithShard(id int, fn func(tasks map[uintptr]*Task)) {
	s := &p.shards[id%NumShards]
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tasks)
}

func (p *Pool) Add(t *Task) {
	p.WithShard(t.Shard, func(tasks map[uintptr]*Task) {
		tasks[t.Socket.FD] = t
	})
}

func (p *Pool) Remove(t *Task) {
	p.WithShard(t.Shard, func(tasks map[uintptr]*Task) {
		delete(tasks, t.Socket.FD)
	})
}

func (p *Pool) Get(shardID int, fd uintptr) (*Task, bool) {
	var found *Task
	var ok bool
	p.WithShard(shardID, func(tasks map[uintptr]*Task) {
		found, ok = tasks[fd]
	})
	return found, ok
}

// EachShard runs fn under every shard's mutex in turn — used by the
// heartbeat sweep (spec.md §4.3 "traverses each shard under its
// mutex").
func (p *Pool) EachShard(fn func(shardID int, tasks map[uintptr]*Task)) {
	for i := range p.shards {
		p.shards[i].mu.Lock()
		fn(i, p.shards[i].tasks)
		p.shards[i].mu.Unlock()
	}
}

// Len returns the total number of tracked tasks across all shards.
func (p *Pool) Len() int {
	n := 0
	p.EachShard(func(_ int, tasks map[uintptr]*Task) {
		n += len(tasks)
	})
	return n
}
