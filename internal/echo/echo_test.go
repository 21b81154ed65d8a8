package echo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wnetio/wnet/internal/worker/task"
)

func TestNewEchoesInput(t *testing.T) {
	p := New()
	sock := &task.Socket{FD: 1, Family: task.FamilyTCP, State: task.StateConnected}
	tk := &task.Task{Socket: sock}

	require.NoError(t, p.Connect(tk))
	tk.In.WriteString("ping")
	require.NoError(t, p.OnData(tk))
	require.Equal(t, "ping", tk.Out.String())
}
