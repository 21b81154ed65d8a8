//go:build linux

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wnetio/wnet/internal/worker/task"
)

func TestDetectReentry(t *testing.T) {
	slot, ok := DetectReentry([]string{"--worker", "3"})
	require.True(t, ok)
	require.Equal(t, 3, slot)
}

func TestDetectReentryNotAWorker(t *testing.T) {
	_, ok := DetectReentry([]string{"--single"})
	require.False(t, ok)

	_, ok = DetectReentry(nil)
	require.False(t, ok)

	_, ok = DetectReentry([]string{"--worker", "not-a-number"})
	require.False(t, ok)
}

func TestFamilyFor(t *testing.T) {
	require.Equal(t, task.FamilyTCP, familyFor("TCP"))
	require.Equal(t, task.FamilyUDP, familyFor("UDP"))
	require.Equal(t, task.FamilyUnix, familyFor("UNIX"))
	require.Equal(t, task.FamilyHTTP, familyFor("HTTP"))
	require.Equal(t, task.FamilyTCP, familyFor("bogus"))
}
