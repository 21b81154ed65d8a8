package master

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wnetio/wnet/internal/channel"
	"github.com/wnetio/wnet/internal/config"
)

// fakeServer satisfies Server without creating any real listening
// sockets, so SpawnWorker/fan-out can be exercised without binding a
// port.
type fakeServer struct{}

func (fakeServer) PrepareStart() error        { return nil }
func (fakeServer) SingleStart() error         { return nil }
func (fakeServer) ListenerFiles() []*os.File { return nil }

// fakeLauncher starts a real short-lived child process (without handing
// it the peer/listener descriptors) so the supervisor has a real PID to
// track, signal, and reap. It keeps a duplicate of each slot's peer end
// so tests can read what the supervisor sent to that worker.
type fakeLauncher struct {
	peers map[int]*channel.Endpoint
}

func (l *fakeLauncher) Launch(slot int, peer *os.File, listeners []*os.File) (*os.Process, error) {
	fd, err := syscall.Dup(int(peer.Fd()))
	if err != nil {
		return nil, err
	}
	l.peers[slot] = channel.NewEndpoint(os.NewFile(uintptr(fd), "test-peer"), nil)

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Process, nil
}

func newTestSupervisor() *Supervisor {
	return New(config.Config{WorkerNum: 1}, fakeServer{}, &fakeLauncher{peers: map[int]*channel.Endpoint{}}, nil)
}

func TestSpawnWorkerAssignsLowestFreeSlot(t *testing.T) {
	sup := newTestSupervisor()

	e1, err := sup.SpawnWorker(Respawn, -1)
	require.NoError(t, err)
	require.Equal(t, 0, e1.Slot)
	defer e1.proc.Kill()

	e2, err := sup.SpawnWorker(Respawn, -1)
	require.NoError(t, err)
	require.Equal(t, 1, e2.Slot)
	defer e2.proc.Kill()

	require.True(t, e1.live())
	require.True(t, e2.live())
	require.True(t, e1.Respawn())
}

func TestSpawnWorkerFansOutOpenToExistingWorkers(t *testing.T) {
	sup := newTestSupervisor()

	e1, err := sup.SpawnWorker(Respawn, -1)
	require.NoError(t, err)
	defer e1.proc.Kill()

	e2, err := sup.SpawnWorker(Respawn, -1)
	require.NoError(t, err)
	defer e2.proc.Kill()

	// e1's worker end should have received an OPEN fan-out naming e2's slot.
	d, err := sup.launcher.(*fakeLauncher).peers[e1.Slot].RecvBytes()
	require.NoError(t, err)
	open, ok := d.Message.(*channel.Open)
	require.True(t, ok)
	require.EqualValues(t, e2.Slot, open.Slot)
}

func TestReapChildrenRespawnsEligibleWorker(t *testing.T) {
	sup := newTestSupervisor()

	e1, err := sup.SpawnWorker(Respawn, -1)
	require.NoError(t, err)
	oldPID := e1.PID

	require.NoError(t, e1.proc.Kill())

	// Give the kernel a moment to reflect the exit in wait4.
	var respawned *WorkerEntry
	for i := 0; i < 50; i++ {
		sup.reapChildren()
		respawned = sup.table.entries[0]
		if respawned.live() && respawned.PID != oldPID {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.True(t, respawned.live())
	require.NotEqual(t, oldPID, respawned.PID)
	defer respawned.proc.Kill()
}

func TestEligibleExcludesDetachedAndJustSpawn(t *testing.T) {
	e := newWorkerEntry(0)
	e.PID = 10
	e.applyRespawnType(Detached)
	require.False(t, eligible(e))

	e2 := newWorkerEntry(1)
	e2.PID = 11
	e2.applyRespawnType(JustSpawn)
	require.False(t, eligible(e2))

	e3 := newWorkerEntry(2)
	e3.PID = 12
	e3.applyRespawnType(Respawn)
	require.True(t, eligible(e3))
}

func TestJustSpawnSuppressionLastsOneCycleOnly(t *testing.T) {
	sup := newTestSupervisor()

	e, err := sup.SpawnWorker(JustRespawn, -1)
	require.NoError(t, err)
	defer e.proc.Kill()

	require.True(t, e.JustSpawn())
	require.False(t, eligible(e), "worker must be excluded from fan-out during its spawn cycle")

	sup.clearJustSpawn()

	require.False(t, e.JustSpawn())
	require.True(t, eligible(e), "worker must become addressable once the spawn cycle has passed")
}

func TestSignalProcessUnknownPidfile(t *testing.T) {
	err := SignalProcess("/nonexistent/path/to/pidfile", 0)
	require.Error(t, err)
}
