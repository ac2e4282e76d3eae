// Package logging builds the structured, leveled zerolog.Logger threaded
// into every scheduler component at construction.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New builds a root logger at the given level, either newline-delimited
// JSON (the default, suited to log aggregation) or a human-readable
// console writer when pretty is requested.
func New(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var w = os.Stderr
	var logger zerolog.Logger
	if pretty {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
		logger = zerolog.New(cw)
	} else {
		logger = zerolog.New(w)
	}
	logger = logger.With().Timestamp().Logger().Level(parseLevel(level))
	return logger
}

func parseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "", "info":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
