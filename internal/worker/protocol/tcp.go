// Package protocol holds the per-family adapters satisfying
// task.Protocol (spec.md §1 "protocol-specific task adapters (TCP /
// Unix / UDP / HTTP) beyond the generic contract they satisfy" — left
// out of the core's scope but needed for AcceptConn to have something
// to dispatch into). Each adapter is deliberately thin: the generic
// Connect/OnData contract is the seam; everything below it is
// application-specific and out of the spec's scope.
package protocol

import (
	"github.com/wnetio/wnet/internal/logging"
	"github.com/wnetio/wnet/internal/worker/task"
)

// Echo is the default TCP/Unix adapter: whatever it reads, it queues
// back out verbatim, the simplest possible application-level hello
// (spec.md §4.3 AcceptConn "call the task's Connect").
type Echo struct{}

func (Echo) Connect(t *task.Task) error {
	logging.For("protocol.echo").Debug().Uintptr("fd", t.Socket.FD).Msg("connected")
	return nil
}

func (Echo) OnData(t *task.Task) error {
	b := t.In.Bytes()
	t.Out.Write(b)
	t.In.Reset()
	t.Socket.Touch(true)
	return nil
}
