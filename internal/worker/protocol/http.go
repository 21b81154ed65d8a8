package protocol

import (
	"github.com/wnetio/wnet/internal/worker/task"
	"github.com/wnetio/wnet/internal/wstatus"
)

// HTTP is a deliberate stub (spec.md §6.5 / SPEC_FULL.md §6.5): request
// routing is explicitly a non-goal of the core (spec.md §1), so this
// adapter accepts the connection — AddListener/AcceptConn still need a
// family to wire up — but refuses to do anything with it beyond that.
// A real HTTP layer is an out-of-scope collaborator.
type HTTP struct{}

func (HTTP) Connect(t *task.Task) error {
	return nil
}

func (HTTP) OnData(t *task.Task) error {
	return wstatus.NotSupportedf("protocol.HTTP.OnData", "HTTP request handling is out of core scope")
}
