// Package master implements the Master Supervisor from spec.md §4.2:
// process table, fork/respawn policy, signal handler, fan-out of
// control messages to workers, and pid-file lifecycle.
package master

import (
	"os"
	"sync/atomic"

	"github.com/wnetio/wnet/internal/channel"
)

// MaxProcess is the fixed process-table capacity (spec.md §3).
const MaxProcess = 1024

// RespawnType selects SpawnWorker's respawn policy (spec.md §4.2).
type RespawnType int

const (
	NoRespawn RespawnType = iota
	Respawn
	JustSpawn
	JustRespawn
	Detached
)

// workerFlags is the WorkerEntry bitset (spec.md §3).
type workerFlags struct {
	exited   atomic.Bool
	exiting  atomic.Bool
	detached atomic.Bool
	respawn  atomic.Bool
	justSpawn atomic.Bool
}

// WorkerEntry is one slot in the process table (spec.md §3). PID == -1
// iff the slot is free or the child has been reaped.
type WorkerEntry struct {
	Slot int
	PID  int

	// ExitCode/Signaled/ExitSignal describe the last reaped exit
	// (spec.md §4.2 "exit code == 2 signals do not respawn").
	ExitCode   int
	Signaled   bool
	ExitSignal os.Signal

	flags workerFlags

	// Local is the supervisor's end of the control channel (spec.md §3
	// "Channel endpoint pair"). Peer is not populated by SpawnWorker:
	// the child's end is handed to the Launcher and the supervisor's
	// copy of it is closed right after launch.
	Local *channel.Endpoint
	Peer  *os.File

	// proc is the OS process handle used to signal/wait the child.
	proc *os.Process
}

func newWorkerEntry(slot int) *WorkerEntry {
	return &WorkerEntry{Slot: slot, PID: -1}
}

func (w *WorkerEntry) Exited() bool    { return w.flags.exited.Load() }
func (w *WorkerEntry) Exiting() bool   { return w.flags.exiting.Load() }
func (w *WorkerEntry) Detached() bool  { return w.flags.detached.Load() }
func (w *WorkerEntry) Respawn() bool   { return w.flags.respawn.Load() }
func (w *WorkerEntry) JustSpawn() bool { return w.flags.justSpawn.Load() }

// live reports whether the slot is occupied by a process the
// supervisor still cares about (spec.md §3 "PID=-1 iff the slot is
// free or the child has been reaped").
func (w *WorkerEntry) live() bool { return w.PID != -1 }

// applyRespawnType sets the flags for type, spec.md §4.2's respawn
// policy table. Per spec.md §9's open question, each case is treated
// independently — no fallthrough between JustSpawn/JustRespawn/
// Detached, since nothing in the testable-properties section (§8)
// requires it and the source's own fallthrough is flagged ambiguous.
func (w *WorkerEntry) applyRespawnType(t RespawnType) {
	switch t {
	case NoRespawn:
		w.flags.respawn.Store(false)
		w.flags.justSpawn.Store(false)
		w.flags.detached.Store(false)
	case Respawn:
		w.flags.respawn.Store(true)
		w.flags.justSpawn.Store(false)
		w.flags.detached.Store(false)
	case JustSpawn:
		w.flags.respawn.Store(false)
		w.flags.justSpawn.Store(true)
		w.flags.detached.Store(false)
	case JustRespawn:
		w.flags.respawn.Store(true)
		w.flags.justSpawn.Store(true)
		w.flags.detached.Store(false)
	case Detached:
		w.flags.respawn.Store(false)
		w.flags.justSpawn.Store(false)
		w.flags.detached.Store(true)
	}
}

// processTable is the fixed-capacity array of WorkerEntry (spec.md
// §3). It is mutated only from the supervisor's single goroutine.
type processTable struct {
	entries [MaxProcess]*WorkerEntry
}

func newProcessTable() *processTable {
	pt := &processTable{}
	for i := range pt.entries {
		pt.entries[i] = newWorkerEntry(i)
	}
	return pt
}

// firstFreeSlot returns the lowest free slot, per spec.md §3's
// "lowest free slot first" allocation strategy.
func (pt *processTable) firstFreeSlot() (int, bool) {
	for i, e := range pt.entries {
		if e == nil || e.PID == -1 {
			return i, true
		}
	}
	return 0, false
}
