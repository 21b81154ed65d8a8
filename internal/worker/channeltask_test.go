//go:build linux

package worker

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wnetio/wnet/internal/channel"
	"github.com/wnetio/wnet/internal/config"
	"github.com/wnetio/wnet/internal/echo"
	"github.com/wnetio/wnet/internal/worker/proto"
)

func newTestRuntime(t *testing.T, master *channel.Endpoint) *Runtime {
	t.Helper()
	return New(config.Default(), echo.New(), master, 0, channel.CoreRegistry())
}

func TestHandleChannelEventOpenAndClose(t *testing.T) {
	r := newTestRuntime(t, nil)

	tmp, err := os.CreateTemp(t.TempDir(), "peer-fd")
	require.NoError(t, err)

	r.handleChannelEvent(&channel.Decoded{Tag: channel.TagCommand, Message: &channel.Open{Slot: 2, PID: 55, Fd: int32(tmp.Fd())}})
	ep, ok := r.peers.peers[2]
	require.True(t, ok)
	require.NotNil(t, ep)

	r.handleChannelEvent(&channel.Decoded{Tag: channel.TagCommand, Message: &channel.Close{Slot: 2, PID: 55}})
	_, ok = r.peers.peers[2]
	require.False(t, ok)
}

func TestHandleChannelEventCloseUnknownSlotIsNoop(t *testing.T) {
	r := newTestRuntime(t, nil)
	require.NotPanics(t, func() {
		r.handleChannelEvent(&channel.Decoded{Tag: channel.TagCommand, Message: &channel.Close{Slot: 99, PID: 1}})
	})
}

func TestHandleChannelEventQuitSetsCleanExit(t *testing.T) {
	r := newTestRuntime(t, nil)
	r.handleChannelEvent(&channel.Decoded{Tag: channel.TagCommand, Message: &channel.Quit{}})
	require.True(t, r.exiting.Load())
	require.EqualValues(t, 0, r.exitCode.Load())
}

func TestHandleChannelEventTerminateSetsDoNotRespawnExit(t *testing.T) {
	r := newTestRuntime(t, nil)
	r.handleChannelEvent(&channel.Decoded{Tag: channel.TagCommand, Message: &channel.Terminate{}})
	require.True(t, r.exiting.Load())
	require.EqualValues(t, 2, r.exitCode.Load())
}

func TestHandleChannelEventExternalReloadNotice(t *testing.T) {
	r := newTestRuntime(t, nil)
	payload, err := proto.Encode(proto.Core, proto.ReloadNotice{Reason: "test"})
	require.NoError(t, err)

	require.NotPanics(t, func() {
		r.handleChannelEvent(&channel.Decoded{Tag: channel.TagExternal, External: payload})
	})
}

func TestRecvControlDrainsUntilPeerClosed(t *testing.T) {
	local, peer, err := channel.NewSocketpair(nil)
	require.NoError(t, err)
	defer peer.Close()

	r := newTestRuntime(t, peer)

	_, err = local.SendBytes(&channel.Quit{})
	require.NoError(t, err)
	require.NoError(t, local.Close())

	r.recvControl()
	require.True(t, r.exiting.Load())
}

func TestReportStatsSendsExternalPayload(t *testing.T) {
	local, peer, err := channel.NewSocketpair(nil)
	require.NoError(t, err)
	defer local.Close()
	defer peer.Close()

	r := newTestRuntime(t, peer)
	r.reportStats()

	d, err := local.RecvBytes()
	require.NoError(t, err)
	require.Equal(t, channel.TagExternal, d.Tag)

	msg, err := proto.Decode(proto.Core, d.External)
	require.NoError(t, err)
	report, ok := msg.(*proto.StatsReport)
	require.True(t, ok)
	require.Equal(t, 0, report.Slot)
}

func TestReportStatsNoopInSingleProcessMode(t *testing.T) {
	r := newTestRuntime(t, nil)
	require.NotPanics(t, func() { r.reportStats() })
}
