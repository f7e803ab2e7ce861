// Package logging configures the process-wide zerolog logger, grounded on
// the teacher's api/cmd/hydra/main.go setup: parse a level, bind a
// console writer for interactive terminals, plain JSON otherwise.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Setup parses levelName and installs the global zerolog logger, returning
// a component-less base logger callers sub-log from via
// `.With().Str("component", ...).Logger()`.
func Setup(levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out zerolog.Logger
	if term.IsTerminal(int(os.Stderr.Fd())) {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	} else {
		out = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	log.Logger = out
	return out
}
