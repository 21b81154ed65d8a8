//go:build linux

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTagRoundTrip(t *testing.T) {
	cases := []struct {
		shard int
		fd    uintptr
	}{
		{0, 0},
		{3, 42},
		{9, 1 << 40},
		{255, 0xFFFFFFFFFFFFFF},
	}
	for _, c := range cases {
		tag := encodeTag(c.shard, c.fd)
		gotShard, gotFD := decodeTag(tag)
		require.Equal(t, c.shard, gotShard)
		require.Equal(t, c.fd, gotFD)
	}
}
