package core

import (
	"fmt"
	"io"

	"github.com/lestrrat-go/strftime"
)

/*
 * Event history watchdogs and the optional append-only text log
 * mirror.
 */

// Watchdog examines whether history's head record differs from the
// last-pushed record and, if so, synthesizes a push — used when a
// voice channel drops mid-call without an explicit END.
func Watchdog(h *EventHistory) bool {
	recent := h.Recent(1)
	if len(recent) == 0 {
		return false
	}
	last := recent[0]
	head := h.Head()
	if head.SourceID != last.SourceID || head.TargetID != last.TargetID || !head.Time.Equal(last.Time) {
		h.Push()
		return true
	}
	return false
}

// eventLogPattern is the P25 event log line format: "YYYYMMDD HHMMSS
// <message>".
var eventLogPattern = mustStrftime("%Y%m%d %H%M%S")

func mustStrftime(pattern string) *strftime.Strftime {
	f, err := strftime.New(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// EventLogWriter mirrors call/grant/release events into an append-only
// plain-text log file when configured.
type EventLogWriter struct {
	w io.Writer
}

// NewEventLogWriter wraps w as an event-log sink; a nil w means the
// feature is disabled and Write becomes a no-op.
func NewEventLogWriter(w io.Writer) *EventLogWriter {
	return &EventLogWriter{w: w}
}

// Write appends one timestamped line.
func (e *EventLogWriter) Write(wallSeconds float64, message string) error {
	if e == nil || e.w == nil {
		return nil
	}
	t := secondsToTime(wallSeconds)
	stamp := eventLogPattern.FormatString(t)
	_, err := fmt.Fprintf(e.w, "%s %s\n", stamp, message)
	return err
}
