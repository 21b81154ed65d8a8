package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckTickRespectsGranularity(t *testing.T) {
	now := time.Unix(0, 0)
	clock := New(func() time.Time { return now })

	require.False(t, clock.CheckTick()) // no time elapsed yet
	now = now.Add(5 * time.Millisecond)
	require.False(t, clock.CheckTick())
	now = now.Add(6 * time.Millisecond)
	require.True(t, clock.CheckTick())
	require.EqualValues(t, 1, clock.Ticks())
}

func TestParamsIdleAndExhausted(t *testing.T) {
	p := Params{KeepAliveMs: 1000, KeepAliveCnt: 3}
	base := time.Unix(100, 0)

	require.False(t, p.Idle(base, base.Add(500*time.Millisecond)))
	require.True(t, p.Idle(base, base.Add(1500*time.Millisecond)))

	require.False(t, p.Exhausted(3))
	require.True(t, p.Exhausted(4))
}
