package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// insertStatusDibits is the test-side inverse of stripStatusDibits:
// it interleaves zero status dibits at the on-air positions.
func insertStatusDibits(data []int8, startAbs int) []int8 {
	out := make([]int8, 0, len(data)+len(data)/35+2)
	abs := startAbs
	for len(data) > 0 {
		if abs%36 == 35 {
			out = append(out, 0)
		} else {
			out = append(out, data[0])
			data = data[1:]
		}
		abs++
	}
	return out
}

// buildNID assembles a parity-valid 64-bit NID as 32 dibits.
func buildNID(nac uint16, duid int) []int8 {
	bits := make([]bool, 64)
	for i := 0; i < 12; i++ {
		bits[i] = nac&(1<<uint(11-i)) != 0
	}
	for i := 0; i < 4; i++ {
		bits[12+i] = duid&(8>>uint(i)) != 0
	}
	if !evenParity(bits) {
		bits[63] = true
	}
	return dibitsFromBits(bits)
}

func newP25TestRig(t *testing.T) (*DecoderState, *P25SM, *fakeHook, *P25P1Handler) {
	t.Helper()
	opt := Defaults()
	opt.TrunkingEnabled = true
	opt.Tune.GroupCalls = true
	st := NewDecoderState(opt)
	st.Sinks.FEC = fakeFEC{}
	st.SeedIden(1, 851000000/5, 100, 0, 0, false, 1)
	hook := &fakeHook{}
	sm := NewP25SM(opt, st, hook, nil)
	sm.CCHeard(851000000, 0, 0)
	return st, sm, hook, &P25P1Handler{}
}

func TestP25P1_TSBKGroupGrantTunes(t *testing.T) {
	st, sm, hook, h := newP25TestRig(t)

	// Last-Block + opcode 0x40, channel 0x100A, TG 0x4567, src 1.
	raw := make([]byte, 24)
	copy(raw, []byte{0xC0, 0x00, 0x00, 0x10, 0x0A, 0x45, 0x67, 0x00, 0x00, 0x01})
	body := BytesToDibits(raw)
	for len(body) < p1TSBKDibits {
		body = append(body, 0)
	}

	data := append(buildNID(0x293, duidTSBK), body[:p1TSBKDibits]...)
	h.Handle(st, sm, insertStatusDibits(data, p25SyncDibits), nil, SyncP25P1Pos)

	require.Equal(t, StateTuned, sm.State())
	require.Equal(t, int64(851125000), hook.tunedFreq)
	require.Equal(t, uint16(0x293), st.P25.NAC)
}

func TestP25P1_NIDParityMismatchSuppressesGrant(t *testing.T) {
	st, sm, hook, h := newP25TestRig(t)

	nid := buildNID(0x293, duidTSBK)
	nid[31] ^= 0x1 // flip one NID bit: parity now odd
	raw := make([]byte, 24)
	copy(raw, []byte{0xC0, 0x00, 0x00, 0x10, 0x0A, 0x45, 0x67, 0x00, 0x00, 0x01})
	body := BytesToDibits(raw)[:48]

	data := append(nid, body...)
	h.Handle(st, sm, insertStatusDibits(data, p25SyncDibits), nil, SyncP25P1Pos)

	require.Equal(t, "NID PARITY MISMATCH", st.P25.Slots[0].ErrorString)
	require.Equal(t, 1, st.P25.Slots[0].ErrorCount)
	require.Equal(t, StateOnCC, sm.State())
	require.Zero(t, hook.tunedFreq)
}

func TestP25P1_PayloadExtensionFollowsDUID(t *testing.T) {
	st, _, _, h := newP25TestRig(t)

	require.Equal(t, onAirLen(p1NIDDibits, p25SyncDibits), h.PayloadLen(SyncP25P1Pos))

	// A TSBK NID asks for one block; a Last-Block block ends collection.
	nid := insertStatusDibits(buildNID(0x293, duidTSBK), p25SyncDibits)
	more := h.ExtendPayload(st, nid, SyncP25P1Pos)
	require.Greater(t, more, 0)

	raw := make([]byte, 25)
	raw[0] = 0xC0
	block := BytesToDibits(raw)[:p1TSBKDibits]
	full := append(append([]int8{}, nid...), insertStatusDibits(block, p25SyncDibits+len(nid))...)
	require.Zero(t, h.ExtendPayload(st, full, SyncP25P1Pos))

	// An LDU NID asks for the whole 784-dibit body.
	nid2 := insertStatusDibits(buildNID(0x293, duidLDU1), p25SyncDibits)
	more2 := h.ExtendPayload(st, nid2, SyncP25P1Pos)
	require.GreaterOrEqual(t, more2, p1LDUDibits)
}

func TestP25P1_LDU1EmitsNineIMBEAndLinkControl(t *testing.T) {
	st, sm, _, h := newP25TestRig(t)
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc

	// Tune first so LDU activity lands on a followed channel.
	sm.Grant(GrantEvent{Channel: 0x100A, Group: true, TGOrDst: 0x4567, Src: 1}, 0, 0)
	require.Equal(t, StateTuned, sm.State())

	// Body bits: zero voice, with the LCW spread over the six signaling
	// chunks. The passthrough RS decode reads the first 72 chunk bits.
	lc := []byte{0x00, 0x00, 0x00, 0x00, 0x45, 0x67, 0x00, 0x00, 0x01}
	lcBits := bytesToBits(lc)
	body := make([]bool, 1568)
	for i := 0; i < 40; i++ {
		body[lduChunkOffsets[0]+i] = lcBits[i]
	}
	for i := 0; i < 32; i++ {
		body[lduChunkOffsets[1]+i] = lcBits[40+i]
	}

	data := append(buildNID(0x293, duidLDU1), dibitsFromBits(body)...)
	h.Handle(st, sm, insertStatusDibits(data, p25SyncDibits), nil, SyncP25P1Pos)

	require.Len(t, voc.codewords, 9)
	for _, n := range voc.nBits {
		require.Equal(t, imbeFrameBits, n)
	}
	head := st.History[0].Head()
	require.Equal(t, uint32(0x4567), head.TargetID)
	require.Equal(t, uint32(1), head.SourceID)
	require.Equal(t, StateTuned, sm.State())
}

func TestP25P1_TDULCReleasesToCC(t *testing.T) {
	st, sm, _, h := newP25TestRig(t)
	sm.Grant(GrantEvent{Channel: 0x100A, Group: true, TGOrDst: 0x4567, Src: 1}, 0, 0)
	require.Equal(t, StateTuned, sm.State())

	data := append(buildNID(0x293, duidTDULC), make([]int8, p1TDULCDibits)...)
	h.Handle(st, sm, insertStatusDibits(data, p25SyncDibits), nil, SyncP25P1Pos)

	require.Equal(t, StateOnCC, sm.State())
}

func TestOnAirLenRoundTripsStripStatus(t *testing.T) {
	for _, want := range []int{1, 32, 98, 784} {
		data := make([]int8, want)
		for i := range data {
			data[i] = int8(i % 4)
		}
		onAir := insertStatusDibits(data, p25SyncDibits)
		require.Equal(t, onAirLen(want, p25SyncDibits), len(onAir))
		require.Equal(t, data, stripStatusDibits(onAir, p25SyncDibits))
	}
}
