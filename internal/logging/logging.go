// Package logging configures the process-wide zerolog logger, the way
// porkg's worker and zygote packages log through github.com/rs/zerolog/log.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init installs the process-wide logger. pretty selects a human console
// writer (colorable, TTY-aware); otherwise structured JSON goes to stderr.
func Init(level zerolog.Level, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if pretty && isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: colorable.NewColorableStderr(), TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger().Level(level)
}

// For is a child logger tagged with the owning component, mirroring the
// per-subsystem loggers used throughout the corpus (e.g. zerolog's
// .With().Str(...) chains in porkg).
func For(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
