package wstatus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusError(t *testing.T) {
	s := IOErrorf("dial", errors.New("connection refused"))
	require.Equal(t, IOError, s.Code)
	require.Contains(t, s.Error(), "connection refused")
	require.Contains(t, s.Error(), "dial")
}

func TestStatusUnwrap(t *testing.T) {
	cause := errors.New("boom")
	s := IOErrorf("step", cause)
	require.ErrorIs(t, s, cause)
}

func TestIs(t *testing.T) {
	s := NotSupportedf("x", "nope")
	require.True(t, Is(s, NotSupported))
	require.False(t, Is(s, IOError))
	require.False(t, Is(errors.New("plain"), IOError))
}

func TestCodeString(t *testing.T) {
	require.Equal(t, "io_error", IOError.String())
	require.Equal(t, "corruption", Corruption.String())
	require.Equal(t, "unknown", Code(99).String())
}
