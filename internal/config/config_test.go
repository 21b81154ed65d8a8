package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.EqualValues(t, 9000, cfg.Port)
	require.Equal(t, "TCP", cfg.Protocol)
	require.True(t, cfg.UseAcceptTurn)
	require.Equal(t, 60000, cfg.KeepAliveMs)
	require.Equal(t, 3, cfg.KeepAliveCnt)
}

func TestLoadNoEnvFileKeepsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "TCP", cfg.Protocol)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WNET_HOST", "0.0.0.0")
	t.Setenv("WNET_WORKERS", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 4, cfg.WorkerNum)
}

func TestMapGetter(t *testing.T) {
	m := Map{"foo": "bar"}
	v, ok := m.GetConf("foo")
	require.True(t, ok)
	require.Equal(t, "bar", v)

	_, ok = m.GetConf("missing")
	require.False(t, ok)
}
