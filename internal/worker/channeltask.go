package worker

import (
	"errors"

	"github.com/wnetio/wnet/internal/channel"
	"github.com/wnetio/wnet/internal/worker/proto"
)

// peerTable is a worker's own view of other workers' addressability
// (spec.md §9 "each worker's local view of the process table stores
// only descriptors it has received via OPEN; it does not assume a
// globally consistent table"). Keyed by slot, not PID, since slot is
// what OPEN/CLOSE name.
type peerTable struct {
	peers map[uint32]*channel.Endpoint
}

func newPeerTable() *peerTable {
	return &peerTable{peers: make(map[uint32]*channel.Endpoint)}
}

// handleChannelEvent processes one decoded control message from the
// inherited channel (spec.md §4.4 "Channel Task"). Handlers must be
// idempotent: OPEN for an unknown slot creates an entry, CLOSE for an
// unknown slot is a no-op (spec.md §9).
func (r *Runtime) handleChannelEvent(d *channel.Decoded) {
	if d.Tag == channel.TagExternal {
		msg, err := proto.Decode(proto.Core, d.External)
		if err != nil {
			r.log.Debug().Err(err).Msg("external channel payload not recognized by core tag map")
			return
		}
		if notice, ok := msg.(*proto.ReloadNotice); ok {
			r.log.Info().Str("reason", notice.Reason).Msg("reload notice received")
		}
		return
	}

	switch m := d.Message.(type) {
	case *channel.Open:
		if old, ok := r.peers.peers[m.Slot]; ok && old != nil {
			old.Close()
		}
		r.peers.peers[m.Slot] = channel.NewEndpoint(fdToFile(m.Fd), r.registry)
		r.log.Info().Uint32("slot", m.Slot).Int32("pid", m.PID).Msg("peer opened")

	case *channel.Close:
		if ep, ok := r.peers.peers[m.Slot]; ok && ep != nil {
			ep.Close()
			delete(r.peers.peers, m.Slot)
		}

	case *channel.Quit:
		r.exiting.Store(true)
		r.exitCode.Store(0)

	case *channel.Terminate:
		r.exiting.Store(true)
		r.exitCode.Store(2)
	}
}

// recvControl drains whatever is currently readable on the master
// channel without blocking, stopping at peer-closed or EAGAIN.
func (r *Runtime) recvControl() {
	for {
		d, err := r.master.RecvBytes()
		if err != nil {
			if errors.Is(err, channel.ErrPeerClosed) {
				r.exiting.Store(true)
				r.exitCode.Store(2)
				return
			}
			return // EAGAIN/transient: try again next wakeup.
		}
		r.handleChannelEvent(d)
	}
}
