// Command wnetd is the CLI entry point wiring internal/config,
// internal/master, and internal/worker together (spec.md §6 "CLI/config
// surface"). Flag parsing follows the pflag idiom the pack's LXD-derived
// examples use rather than the stdlib flag package.
package main

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/wnetio/wnet/internal/config"
	"github.com/wnetio/wnet/internal/daemon"
	"github.com/wnetio/wnet/internal/echo"
	"github.com/wnetio/wnet/internal/logging"
	"github.com/wnetio/wnet/internal/master"
	"github.com/wnetio/wnet/internal/worker"
)

func main() {
	if slot, ok := worker.DetectReentry(os.Args[1:]); ok {
		runWorker(slot)
		return
	}

	var (
		envFile  = pflag.StringP("env-file", "e", "", "path to a .env file feeding configuration")
		single   = pflag.Bool("single", false, "run single-process mode (no supervisor, no forked workers)")
		daemonFl = pflag.Bool("daemon", false, "detach and run in the background")
		verbose  = pflag.BoolP("verbose", "v", false, "debug logging")
		signalTo = pflag.StringP("signal", "s", "", "send a signal to a running instance: stop|quit|reopen|reload")
		pidPath  = pflag.String("pid-path", "", "override the configured pid file path")
	)
	pflag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logging.Init(level, true)
	log := logging.For("cmd")

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wnetd: config: %v\n", err)
		os.Exit(1)
	}
	if *pidPath != "" {
		cfg.PidPath = *pidPath
	}
	if cfg.WorkerNum <= 0 {
		cfg.WorkerNum = runtime.NumCPU()
	}

	if *signalTo != "" {
		if err := sendSignal(cfg.PidPath, *signalTo); err != nil {
			fmt.Fprintf(os.Stderr, "wnetd: -s %s: %v\n", *signalTo, err)
			os.Exit(1)
		}
		return
	}

	if *daemonFl || cfg.Daemon {
		if err := daemon.Daemonize("WNETD_DAEMONIZED"); err != nil {
			fmt.Fprintf(os.Stderr, "wnetd: daemonize: %v\n", err)
			os.Exit(1)
		}
	}
	_ = daemon.SetProcTitle(fmt.Sprintf("wnetd: master (%s:%d)", cfg.Host, cfg.Port))

	rt := worker.New(cfg, echo.New(), nil, -1, nil)
	sup := master.New(cfg, rt, master.NewExecLauncher(), nil)

	if err := sup.PrepareStart(); err != nil {
		log.Error().Err(err).Msg("PrepareStart failed")
		os.Exit(1)
	}

	if *single {
		if err := sup.SingleStart(); err != nil {
			log.Error().Err(err).Msg("SingleStart failed")
			os.Exit(1)
		}
		return
	}

	if err := sup.MasterStart(); err != nil {
		log.Error().Err(err).Msg("MasterStart failed")
		os.Exit(1)
	}
}

// runWorker is the re-exec'd worker entry point (spec.md §9 "passing
// the worker's slot index and role as environment or argv").
func runWorker(slot int) {
	logging.Init(zerolog.InfoLevel, false)
	_ = daemon.SetProcTitle(fmt.Sprintf("wnetd: worker[%d]", slot))

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "wnetd worker: config: %v\n", err)
		os.Exit(2)
	}

	rt := worker.Reenter(cfg, echo.New(), slot)
	if err := rt.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "wnetd worker: %v\n", err)
		os.Exit(2)
	}
	os.Exit(rt.ExitCode())
}

func sendSignal(pidPath, name string) error {
	var sig syscall.Signal
	switch name {
	case "stop":
		sig = syscall.SIGTERM
	case "quit":
		sig = syscall.SIGQUIT
	case "reload":
		sig = syscall.SIGHUP
	case "reopen":
		sig = syscall.SIGUSR1
	default:
		return fmt.Errorf("unknown signal name %q", name)
	}
	return master.SignalProcess(pidPath, sig)
}
