// Package xlog sets up the process-wide zerolog logger and the two
// environment-driven startup switches the original process checked before
// doing anything else: a trace-level toggle and a debugger-attach delay.
package xlog

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvTrace raises the global log level to Debug when set to a nonzero
// value, matching the original's XCRYPT_TRACE / trace_enable flag.
const EnvTrace = "XCRYPT_TRACE"

// EnvDebug, when set to any value, pauses startup so a debugger can
// attach before the process does anything observable.
const EnvDebug = "XCRYPT_DEBUG"

// debugDelay matches the original's sleep(40).
const debugDelay = 40 * time.Second

// Init configures the global zerolog logger and applies the startup
// environment switches. Call it once, before anything else runs.
func Init() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if traceEnabled(os.Getenv(EnvTrace)) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if _, set := os.LookupEnv(EnvDebug); set {
		time.Sleep(debugDelay)
	}
}

// traceEnabled reports whether the XCRYPT_TRACE value turns trace logging
// on: unset or non-numeric is off, any nonzero integer is on, matching
// the original's atoi-then-truthiness check.
func traceEnabled(env string) bool {
	if env == "" {
		return false
	}
	v, err := strconv.Atoi(env)
	return err == nil && v != 0
}
