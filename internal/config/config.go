// Package config is the out-of-scope "configuration loader" collaborator
// the core talks to only through the Config struct and the Getter
// interface. It loads via github.com/golobby/config/v3, mirroring the
// env-tag struct shape porkg's WorkerConfig uses in internal/worker/linux.go.
package config

import (
	"fmt"

	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

// Config is the full surface spec.md §6 names plus the tuning knobs
// the worker runtime needs.
type Config struct {
	Host     string `env:"WNET_HOST"`
	Port     int16  `env:"WNET_PORT"`
	Protocol string `env:"WNET_PROTOCOL"` // TCP | UDP | UNIX | HTTP

	WorkerNum int    `env:"WNET_WORKERS"`
	PidPath   string `env:"WNET_PID_PATH"`
	LockPath  string `env:"WNET_LOCK_PATH"`
	Daemon    bool   `env:"WNET_DAEMON"`
	Version   string `env:"WNET_VERSION"`

	UseAcceptTurn bool `env:"WNET_ACCEPT_TURN"`

	KeepAliveMs  int `env:"WNET_KEEPALIVE_MS"`
	KeepAliveCnt int `env:"WNET_KEEPALIVE_CNT"`
}

// Default returns the spec's defaults: workerNum = online CPU count is
// resolved by the caller (runtime.NumCPU()), not here, since config has
// no business guessing hardware.
func Default() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           9000,
		Protocol:       "TCP",
		PidPath:        "/var/run/wnetd.pid",
		LockPath:       "/var/run/wnetd.accept.lock",
		UseAcceptTurn: true,
		KeepAliveMs:   60000,
		KeepAliveCnt:  3,
	}
}

// Load feeds envPath (a .env-style file, may be empty to skip) and the
// process environment into a Config seeded with Default().
func Load(envPath string) (Config, error) {
	cfg := Default()

	c := config.New()
	if envPath != "" {
		c = c.AddFeeder(feeder.DotEnv{Path: envPath})
	}
	c = c.AddFeeder(feeder.Env{}).AddStruct(&cfg)

	if err := c.Feed(); err != nil {
		return Config{}, fmt.Errorf("config: feed: %w", err)
	}
	return cfg, nil
}

// GetConf mirrors the original wConfig::GetConf(key, *value) collaborator
// contract the core talks to: a narrow key/value accessor so supervisor
// and worker code never depends on the concrete loader.
type Getter interface {
	GetConf(key string) (string, bool)
}

// Map is the simplest Getter: a flattened string map, useful for tests.
type Map map[string]string

func (m Map) GetConf(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
