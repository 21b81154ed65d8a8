package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wnetio/wnet/internal/worker/task"
)

func TestEchoConnectAndOnData(t *testing.T) {
	sock := &task.Socket{FD: 1, Family: task.FamilyTCP, State: task.StateConnected}
	tk := &task.Task{Socket: sock}

	e := Echo{}
	require.NoError(t, e.Connect(tk))

	tk.In.WriteString("hello")
	require.NoError(t, e.OnData(tk))
	require.Equal(t, "hello", tk.Out.String())
	require.Equal(t, 0, tk.In.Len())
}

func TestDatagramOnData(t *testing.T) {
	sock := &task.Socket{FD: 2, Family: task.FamilyUDP, State: task.StateConnected}
	tk := &task.Task{Socket: sock}

	d := Datagram{}
	tk.In.WriteString("ping")
	require.NoError(t, d.OnData(tk))
	require.Equal(t, "ping", tk.Out.String())
}

func TestHTTPRefusesOnData(t *testing.T) {
	sock := &task.Socket{FD: 3, Family: task.FamilyHTTP, State: task.StateConnected}
	tk := &task.Task{Socket: sock}

	h := HTTP{}
	require.NoError(t, h.Connect(tk))
	require.Error(t, h.OnData(tk))
}

func TestUnixDomainIsEcho(t *testing.T) {
	sock := &task.Socket{FD: 4, Family: task.FamilyUnix, State: task.StateConnected}
	tk := &task.Task{Socket: sock}

	var u UnixDomain
	tk.In.WriteString("abc")
	require.NoError(t, u.OnData(tk))
	require.Equal(t, "abc", tk.Out.String())
}
