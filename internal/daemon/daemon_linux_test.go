//go:build linux

package daemon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetProcTitleDoesNotError(t *testing.T) {
	require.NoError(t, SetProcTitle("wnetd: test"))
}

func TestSetProcTitleTruncatesToAvailableSpace(t *testing.T) {
	huge := make([]byte, 1<<20)
	for i := range huge {
		huge[i] = 'x'
	}
	require.NoError(t, SetProcTitle(string(huge)))
}
