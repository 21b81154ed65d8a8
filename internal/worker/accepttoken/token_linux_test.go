//go:build linux

package accepttoken

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryAcquireReleaseCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accept.lock")

	tok, err := Open(path)
	require.NoError(t, err)
	defer tok.Close()

	ok, err := tok.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tok.TryAcquire() // re-acquire is a no-op success
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, tok.Release())
}

func TestTryAcquireExclusiveAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accept.lock")

	holder, err := Open(path)
	require.NoError(t, err)
	defer holder.Close()

	ok, err := holder.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)

	other, err := Open(path)
	require.NoError(t, err)
	defer other.Close()

	ok, err = other.TryAcquire()
	require.NoError(t, err)
	require.False(t, ok, "second handle must not acquire while first holds the token")

	require.NoError(t, holder.Release())

	ok, err = other.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok, "token must become acquirable once released")
}
