package protocol

import "github.com/wnetio/wnet/internal/worker/task"

// Datagram is the UDP adapter: it echoes whatever is in t.In back into
// t.Out. The worker's acceptConn has no UDP branch: it calls accept4 on
// every listening socket, so a UDP listener is not wrapped as a
// Connected task and the readiness loop does not route datagrams here.
// A UDP task that is Connected is not evicted on read or write errors
// (the non-UDP-failure rule in the readiness loop's dispatch).
type Datagram struct{}

func (Datagram) Connect(t *task.Task) error { return nil }

func (Datagram) OnData(t *task.Task) error {
	b := t.In.Bytes()
	t.Out.Write(b)
	t.In.Reset()
	t.Socket.Touch(true)
	return nil
}
