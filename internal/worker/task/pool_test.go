package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardForStable(t *testing.T) {
	fd := uintptr(47)
	want := int(fd % NumShards)
	require.Equal(t, want, ShardFor(fd))
	require.Equal(t, ShardFor(fd), ShardFor(fd))
}

func TestPoolAddGetRemove(t *testing.T) {
	p := NewPool()
	sock := &Socket{FD: 10, Family: FamilyTCP, State: StateConnected}
	tk := &Task{Socket: sock, Shard: ShardFor(sock.FD)}

	p.Add(tk)
	got, ok := p.Get(tk.Shard, sock.FD)
	require.True(t, ok)
	require.Same(t, tk, got)
	require.Equal(t, 1, p.Len())

	p.Remove(tk)
	_, ok = p.Get(tk.Shard, sock.FD)
	require.False(t, ok)
	require.Equal(t, 0, p.Len())
}

func TestPoolEachShardVisitsAll(t *testing.T) {
	p := NewPool()
	for i := 0; i < 25; i++ {
		fd := uintptr(i)
		sock := &Socket{FD: fd, Family: FamilyTCP, State: StateConnected}
		p.Add(&Task{Socket: sock, Shard: ShardFor(fd)})
	}
	require.Equal(t, 25, p.Len())

	seen := 0
	p.EachShard(func(_ int, tasks map[uintptr]*Task) {
		seen += len(tasks)
	})
	require.Equal(t, 25, seen)
}

func TestSocketTouch(t *testing.T) {
	s := &Socket{}
	require.True(t, s.LastSend.IsZero())
	s.Touch(true)
	require.False(t, s.LastSend.IsZero())
	require.True(t, s.LastRecv.IsZero())
}

func TestFamilyString(t *testing.T) {
	require.Equal(t, "tcp", FamilyTCP.String())
	require.Equal(t, "unix", FamilyUnix.String())
	require.Equal(t, "udp", FamilyUDP.String())
	require.Equal(t, "unknown", Family(99).String())
}
