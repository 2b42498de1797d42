package core

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

/*
 * Logging setup: a single charmbracelet/log logger shared by the
 * engine, trunking SM, and dispatcher, with the engine's own
 * operational fields (slot, freq, state) attached via structured
 * key/value pairs rather than ad hoc string formatting.
 */

// LogLevel mirrors the subset of charmbracelet/log's levels the CLI
// exposes as a flag.
type LogLevel int

const (
	LogInfo LogLevel = iota
	LogDebug
	LogWarn
	LogError
)

// NewLogger builds a logger writing to w (os.Stderr when nil) at the
// requested level, with the engine's standard prefix.
func NewLogger(w io.Writer, level LogLevel) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "dvcore",
	})
	switch level {
	case LogDebug:
		l.SetLevel(log.DebugLevel)
	case LogWarn:
		l.SetLevel(log.WarnLevel)
	case LogError:
		l.SetLevel(log.ErrorLevel)
	default:
		l.SetLevel(log.InfoLevel)
	}
	return l
}

// WithSlot returns a derived logger tagging every line with the given
// slot index, used by handlers and the trunking SM for per-slot
// context in two-slot TDMA bookkeeping.
func WithSlot(l *log.Logger, slot int) *log.Logger {
	if l == nil {
		return nil
	}
	return l.With("slot", slot)
}
