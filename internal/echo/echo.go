// Package echo is the example application-level handler wired in by
// default: it satisfies task.Protocol by reflecting back whatever
// bytes a connection sends (spec.md §1 "application-level request
// handlers" are out of the core's scope; this is the demo filling that
// collaborator slot so cmd/wnetd has something runnable out of the box).
package echo

import (
	"github.com/wnetio/wnet/internal/worker/protocol"
	"github.com/wnetio/wnet/internal/worker/task"
)

// New returns the default echo Protocol.
func New() task.Protocol { return protocol.Echo{} }
