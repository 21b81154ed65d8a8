package master

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFirstFreeSlot(t *testing.T) {
	tbl := newProcessTable()
	slot, ok := tbl.firstFreeSlot()
	require.True(t, ok)
	require.Equal(t, 0, slot)

	tbl.entries[0].PID = 111
	slot, ok = tbl.firstFreeSlot()
	require.True(t, ok)
	require.Equal(t, 1, slot)
}

func TestFirstFreeSlotFull(t *testing.T) {
	tbl := newProcessTable()
	for i := range tbl.entries {
		tbl.entries[i].PID = 1000 + i
	}
	_, ok := tbl.firstFreeSlot()
	require.False(t, ok)
}

func TestApplyRespawnTypeIndependentCases(t *testing.T) {
	cases := []struct {
		t             RespawnType
		wantRespawn   bool
		wantJustSpawn bool
		wantDetached  bool
	}{
		{NoRespawn, false, false, false},
		{Respawn, true, false, false},
		{JustSpawn, false, true, false},
		{JustRespawn, true, true, false},
		{Detached, false, false, true},
	}
	for _, c := range cases {
		e := newWorkerEntry(0)
		e.applyRespawnType(c.t)
		require.Equal(t, c.wantRespawn, e.Respawn(), "respawn for %v", c.t)
		require.Equal(t, c.wantJustSpawn, e.JustSpawn(), "justSpawn for %v", c.t)
		require.Equal(t, c.wantDetached, e.Detached(), "detached for %v", c.t)
	}
}

func TestWorkerEntryLiveness(t *testing.T) {
	e := newWorkerEntry(2)
	require.False(t, e.live())
	e.PID = 555
	require.True(t, e.live())
}
