package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// dibitsFromBits packs a bit slice into dibits, two bits per dibit,
// MSB first — the inverse of dibitsToBits.
func dibitsFromBits(bits []bool) []int8 {
	out := make([]int8, (len(bits)+1)/2)
	for i, b := range bits {
		if b {
			out[i/2] |= 0x2 >> uint(i%2)
		}
	}
	return out
}

func bytesToBits(b []byte) []bool {
	out := make([]bool, 0, len(b)*8)
	for _, v := range b {
		for i := 7; i >= 0; i-- {
			out = append(out, v&(1<<uint(i)) != 0)
		}
	}
	return out
}

// testCACH builds a 12-dibit CACH whose TACT TC bit selects the slot.
func testCACH(slot int) []int8 {
	bits := make([]bool, 24)
	if slot == 1 {
		bits[tactPositions[1]] = true
	}
	return dibitsFromBits(bits)
}

// buildDMRLCInfo builds the 196 info bits whose BPTC payload starts
// with the given 12 LC bytes (passthrough FEC takes the leading 96).
func buildDMRLCInfo(lc []byte) []bool {
	bits := bytesToBits(lc)
	for len(bits) < 196 {
		bits = append(bits, false)
	}
	return bits[:196]
}

func feedDMRDataBurst(st *DecoderState, slot int, cc, dataType int, lc []byte) []int8 {
	info := buildDMRLCInfo(lc)
	stBits := make([]bool, 20)
	for i := 0; i < 4; i++ {
		stBits[i] = cc&(8>>uint(i)) != 0
		stBits[4+i] = dataType&(8>>uint(i)) != 0
	}

	pre := append([]int8{}, testCACH(slot)...)
	pre = append(pre, dibitsFromBits(info[:98])...)
	pre = append(pre, dibitsFromBits(stBits[:10])...)
	pre = append(pre, SyncPatternDibits(SyncDMRBSDataPos)...)

	payload := append(dibitsFromBits(stBits[10:]), dibitsFromBits(info[98:])...)

	for _, d := range append(append([]int8{}, pre...), payload...) {
		st.Dibits.Push(d, 255)
	}
	return payload
}

func TestDMRHandler_VoiceLCHeaderBooksCall(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Sinks.FEC = fakeFEC{}
	h := &DMRHandler{}

	lc := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x23, 0x00, 0x04, 0x56, 0, 0, 0}
	payload := feedDMRDataBurst(st, 1, 5, dmrDTVoiceLCHeader, lc)

	h.Handle(st, nil, payload, nil, SyncDMRBSDataPos)

	require.Equal(t, 1, st.LastSlot)
	require.Equal(t, 5, st.DMR.ColorCode)
	require.True(t, st.DMR.SlotLights[1])
	head := st.History[1].Head()
	require.Equal(t, uint32(0x000123), head.TargetID)
	require.Equal(t, uint32(0x000456), head.SourceID)
	require.True(t, head.GroupOrPriv)
	require.Equal(t, "DMR", head.SysIDString)
}

func TestDMRHandler_TerminatorPushesHistoryAndClearsSlot(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Sinks.FEC = fakeFEC{}
	h := &DMRHandler{}

	lc := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x23, 0x00, 0x04, 0x56, 0, 0, 0}
	payload := feedDMRDataBurst(st, 0, 1, dmrDTTerminatorLC, lc)
	h.Handle(st, nil, payload, nil, SyncDMRBSDataPos)

	require.False(t, st.DMR.SlotLights[0])
	require.Zero(t, st.DMR.VoiceFrames[0])
	recent := st.History[0].Recent(1)
	require.Len(t, recent, 1)
	require.Equal(t, uint32(0x000123), recent[0].TargetID)
}

func TestDMRHandler_PIHeaderArmsEncryption(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Sinks.FEC = fakeFEC{}
	h := &DMRHandler{}

	lc := []byte{0x21, 0x00, 0x07, 0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0, 0}
	payload := feedDMRDataBurst(st, 0, 1, dmrDTPIHeader, lc)
	h.Handle(st, nil, payload, nil, SyncDMRBSDataPos)

	require.True(t, st.DMR.Encrypted)
	require.Equal(t, 0x21, st.DMR.AlgID)
	require.Equal(t, 0x07, st.DMR.KeyID)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, st.DMR.MI)
	// No key loaded, so no keystream is armed.
	require.Nil(t, st.Keystream.Current)
}

// buildDMREMBBurst assembles one EMB burst (bursts B..F): CACH, two
// voice halves, and the 16-bit EMB around a 32-bit embedded fragment.
func buildDMREMBBurst(slot, lcss int, fragment []bool) []int8 {
	embBits := make([]bool, 16)
	embBits[5] = lcss&2 != 0
	embBits[6] = lcss&1 != 0

	burst := append([]int8{}, testCACH(slot)...)
	burst = append(burst, make([]int8, dmrHalfDibits)...) // voice first half
	burst = append(burst, dibitsFromBits(embBits[:8])...)
	burst = append(burst, dibitsFromBits(fragment)...)
	burst = append(burst, dibitsFromBits(embBits[8:])...)
	burst = append(burst, make([]int8, dmrHalfDibits)...) // voice second half
	return burst
}

func TestDMRHandler_VoiceSuperframeEmitsAMBEAndEmbeddedLC(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Sinks.FEC = fakeFEC{}
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc
	h := &DMRHandler{}

	// Sync burst pre-roll: CACH + first voice half + sync, then the
	// second half arrives as the first collected payload.
	pre := append([]int8{}, testCACH(0)...)
	pre = append(pre, make([]int8, dmrHalfDibits)...)
	pre = append(pre, SyncPatternDibits(SyncDMRBSVoicePos)...)
	firstHalf := make([]int8, dmrHalfDibits)
	for _, d := range append(append([]int8{}, pre...), firstHalf...) {
		st.Dibits.Push(d, 255)
	}

	more := h.ExtendPayload(st, firstHalf, SyncDMRBSVoicePos)
	require.Equal(t, dmrVoicePayload-dmrHalfDibits, more)
	require.Len(t, st.DMR.voice1Stash, dmrHalfDibits)

	// Embedded LC split across bursts B..E, burst F idle.
	lc := []byte{0x00, 0x00, 0x00, 0x00, 0x0A, 0xBC, 0x00, 0x0D, 0xEF}
	lcBits := bytesToBits(lc)
	for len(lcBits) < 128 {
		lcBits = append(lcBits, false)
	}

	payload := append([]int8{}, firstHalf...)
	lcssOrder := []int{1, 3, 3, 2, 0}
	for k := 0; k < 5; k++ {
		fragment := make([]bool, 32)
		if k < 4 {
			fragment = lcBits[k*32 : (k+1)*32]
		}
		payload = append(payload, buildDMREMBBurst(0, lcssOrder[k], fragment)...)
	}
	require.Len(t, payload, dmrVoicePayload)

	h.Handle(st, nil, payload, nil, SyncDMRBSVoicePos)

	// 3 AMBE frames from burst A plus 3 per EMB burst.
	require.Len(t, voc.codewords, 18)
	for _, p := range voc.protos {
		require.Equal(t, ProtoDMR, p)
	}
	for _, n := range voc.nBits {
		require.Equal(t, 49, n)
	}

	head := st.History[0].Head()
	require.Equal(t, uint32(0x000ABC), head.TargetID)
	require.Equal(t, uint32(0x000DEF), head.SourceID)
}

func TestDMRHandler_EncryptedVoiceKeystreamsPackedFrame(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Opt.Keys = map[uint16][]byte{0x07: {1, 2, 3, 4, 5}}
	st.Sinks.FEC = fakeFEC{}
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc
	h := &DMRHandler{}

	lc := []byte{0x21, 0x00, 0x07, 0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0, 0}
	payload := feedDMRDataBurst(st, 0, 1, dmrDTPIHeader, lc)
	h.Handle(st, nil, payload, nil, SyncDMRBSDataPos)
	require.NotNil(t, st.Keystream.Current)

	// Replicate the armed keystream independently.
	drop, mod := RC4ParamsFor("DMR")
	ks, err := Build(KeystreamParams{
		Alg: AlgRC4, Key: []byte{1, 2, 3, 4, 5}, IV: []byte{0xDE, 0xAD, 0xBE, 0xEF},
		DropBytes: drop, KeyModulus: mod,
	}, rc4OutputOctets*8)
	require.NoError(t, err)
	expected := ks.Bits(ks.Len())

	pre := append([]int8{}, testCACH(0)...)
	pre = append(pre, make([]int8, dmrHalfDibits)...)
	pre = append(pre, SyncPatternDibits(SyncDMRBSVoicePos)...)
	firstHalf := make([]int8, dmrHalfDibits)
	for _, d := range append(append([]int8{}, pre...), firstHalf...) {
		st.Dibits.Push(d, 255)
	}
	require.Equal(t, dmrVoicePayload-dmrHalfDibits, h.ExtendPayload(st, firstHalf, SyncDMRBSVoicePos))

	vp := append([]int8{}, firstHalf...)
	for k := 0; k < 5; k++ {
		vp = append(vp, buildDMREMBBurst(0, 0, make([]bool, 32))...)
	}
	h.Handle(st, nil, vp, nil, SyncDMRBSVoicePos)

	// Every zero-payload frame must come out as that frame's 56-bit
	// keystream window trimmed to the 49 payload bits: the 7 packing
	// bits are skipped, never payload bits 42-48.
	require.Len(t, voc.codewords, 18)
	for f, cw := range voc.codewords {
		want := make([]bool, 49)
		copy(want, expected[f*56:f*56+49])
		require.Equal(t, bitsToBytes(want), cw, "frame %d", f)
	}
}
