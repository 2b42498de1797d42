package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchdog_NoOpWhenHistoryEmpty(t *testing.T) {
	h := &EventHistory{}
	require.False(t, Watchdog(h))
}

func TestWatchdog_NoOpWhenHeadMatchesLastPush(t *testing.T) {
	h := &EventHistory{}
	rec := EventRecord{SourceID: 1, TargetID: 2, Time: time.Unix(100, 0)}
	h.SetHead(rec)
	h.Push()
	h.SetHead(rec)

	require.False(t, Watchdog(h))
	require.Len(t, h.Recent(2), 1)
}

func TestWatchdog_SynthesizesPushOnDivergence(t *testing.T) {
	h := &EventHistory{}
	h.SetHead(EventRecord{SourceID: 1, TargetID: 2, Time: time.Unix(100, 0)})
	h.Push()

	h.SetHead(EventRecord{SourceID: 1, TargetID: 3, Time: time.Unix(105, 0)})

	require.True(t, Watchdog(h))
	recent := h.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, uint32(3), recent[0].TargetID)
	require.Equal(t, uint32(2), recent[1].TargetID)
}

func TestEventLogWriter_NilWriterIsNoOp(t *testing.T) {
	w := NewEventLogWriter(nil)
	require.NoError(t, w.Write(0, "anything"))
}

func TestEventLogWriter_FormatsTimestampedLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewEventLogWriter(&buf)

	ts := secondsToTime(0).Add(0) // epoch
	require.NoError(t, w.Write(float64(ts.Unix()), "grant TG1234 src5678"))

	line := buf.String()
	require.Contains(t, line, "grant TG1234 src5678")
	require.Equal(t, byte('\n'), line[len(line)-1])
	// "YYYYMMDD HHMMSS " prefix is 16 chars (8+1+6+1 space).
	require.GreaterOrEqual(t, len(line), 16)
}
