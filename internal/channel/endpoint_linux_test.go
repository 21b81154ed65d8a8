//go:build linux

package channel

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSocketpairSendRecvCommand(t *testing.T) {
	local, peer, err := NewSocketpair(nil)
	require.NoError(t, err)
	defer local.Close()
	defer peer.Close()

	_, err = local.SendBytes(&Close{Slot: 5, PID: 123})
	require.NoError(t, err)

	d, err := peer.RecvBytes()
	require.NoError(t, err)
	require.Equal(t, TagCommand, d.Tag)
	c, ok := d.Message.(*Close)
	require.True(t, ok)
	require.EqualValues(t, 5, c.Slot)
	require.EqualValues(t, 123, c.PID)
}

func TestSocketpairSendRecvOpenCarriesFD(t *testing.T) {
	local, peer, err := NewSocketpair(nil)
	require.NoError(t, err)
	defer local.Close()
	defer peer.Close()

	tmp, err := os.CreateTemp(t.TempDir(), "carried")
	require.NoError(t, err)
	defer tmp.Close()

	_, err = local.SendBytes(&Open{Slot: 1, PID: 42, Fd: int32(tmp.Fd())})
	require.NoError(t, err)

	d, err := peer.RecvBytes()
	require.NoError(t, err)
	o, ok := d.Message.(*Open)
	require.True(t, ok)
	require.GreaterOrEqual(t, o.Fd, int32(0))
	require.NotEqual(t, int32(tmp.Fd()), o.Fd) // dup'd into a new fd number in this process
}

func TestSocketpairSendRecvExternal(t *testing.T) {
	local, peer, err := NewSocketpair(nil)
	require.NoError(t, err)
	defer local.Close()
	defer peer.Close()

	payload := []byte{0xAA, 0x01, 0x02, 0x03}
	_, err = local.SendExternal(payload)
	require.NoError(t, err)

	d, err := peer.RecvBytes()
	require.NoError(t, err)
	require.Equal(t, TagExternal, d.Tag)
	require.Equal(t, payload, d.External)
}

func TestClosePeerSurfacesAsPeerClosed(t *testing.T) {
	local, peer, err := NewSocketpair(nil)
	require.NoError(t, err)
	defer peer.Close()

	require.NoError(t, local.Close())
	require.NoError(t, local.Close()) // idempotent

	_, err = peer.RecvBytes()
	require.ErrorIs(t, err, ErrPeerClosed)
}
