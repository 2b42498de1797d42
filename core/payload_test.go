package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// The engine asks the matching handler how many post-sync dibits to
// collect; each protocol's answer is its frame geometry.
func TestDispatcher_PayloadLenPerProtocol(t *testing.T) {
	d := NewDispatcher(nil)

	require.Equal(t, dmrHalfDibits, d.PayloadLen(SyncDMRBSVoicePos))
	require.Equal(t, dmrDataPayload, d.PayloadLen(SyncDMRBSDataPos))
	require.Equal(t, nxdnPayload, d.PayloadLen(SyncNXDNFSWPos))
	require.Equal(t, ysfPayload, d.PayloadLen(SyncYSFPos))
	require.Equal(t, dstarHDDibits, d.PayloadLen(SyncDSTARHDPos))
	require.Equal(t, dstarVoiceDibits, d.PayloadLen(SyncDSTARVoicePos))
	require.Equal(t, m17FrameDibits, d.PayloadLen(SyncM17LSFPos))
	require.Zero(t, d.PayloadLen(SyncM17PREPos))
	require.Equal(t, p2BurstDibits, d.PayloadLen(SyncP25P2Pos))
	require.Equal(t, onAirLen(p1NIDDibits, p25SyncDibits), d.PayloadLen(SyncP25P1Pos))
	require.Zero(t, d.PayloadLen(SyncEDACSPos))
	require.Equal(t, dpmrPayloadDibits, d.PayloadLen(SyncDPMRFS2Pos))
	require.Zero(t, d.PayloadLen(SyncDPMRFS1Pos))
}

// ExtendPayload only matters to protocols whose length depends on
// already-collected content; everyone else reports complete.
func TestDispatcher_ExtendPayloadDefaultsToZero(t *testing.T) {
	d := NewDispatcher(nil)
	st := NewDecoderState(Defaults())

	require.Zero(t, d.ExtendPayload(st, make([]int8, ysfPayload), SyncYSFPos))
	require.Zero(t, d.ExtendPayload(st, make([]int8, p2BurstDibits), SyncP25P2Pos))
}
