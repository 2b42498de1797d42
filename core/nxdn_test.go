package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildLICH encodes the 8 LICH bits one-per-dibit in the sign
// position, appending the even-parity bit.
func buildLICH(rfct, fct, option, direction int) []int8 {
	bits := []bool{
		rfct&2 != 0, rfct&1 != 0,
		fct&2 != 0, fct&1 != 0,
		option&2 != 0, option&1 != 0,
		direction&1 != 0,
	}
	parity := !evenParity(bits)
	bits = append(bits, parity)
	out := make([]int8, 8)
	for i, b := range bits {
		if b {
			out[i] = 2
		}
	}
	return out
}

// buildSACCH packs a 4-byte fragment so the passthrough Conv12 decode
// (which keeps the leading half) recovers it. Only the first 30 bits
// survive, so callers keep meaningful data out of the last two bits of
// the fourth byte.
func buildSACCH(raw [4]byte) []int8 {
	bits := bytesToBits(raw[:])[:30]
	padded := append(append([]bool{}, bits...), make([]bool, 30)...)
	return dibitsFromBits(padded)
}

func nxdnVoiceFrame(sacch [4]byte) []int8 {
	payload := append([]int8{}, buildLICH(nxdnRTCH, 0, 0, 0)...)
	payload = append(payload, buildSACCH(sacch)...)
	payload = append(payload, make([]int8, nxdnVCHFrames*nxdnVCHDibits)...)
	return payload
}

func TestNXDN_VCALLAssemblyOverFourFrames(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Sinks.FEC = fakeFEC{}
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc
	h := &NXDNHandler{}

	// VCALL: message type 0x01, src 0x1234, dst 0x5C78 spread over the
	// four 3-byte SACCH fragments.
	fragments := [4][4]byte{
		{0 << 6, 0x01, 0x00, 0x00},
		{1 << 6, 0x12, 0x34, 0x5C},
		{2 << 6, 0x78, 0x00, 0x00},
		{3 << 6, 0x00, 0x00, 0x00},
	}
	for _, frag := range fragments {
		h.Handle(st, nil, nxdnVoiceFrame(frag), nil, SyncNXDNFSWPos)
	}

	require.True(t, st.NXDN.LICHValid)
	require.Equal(t, nxdnRTCH, st.NXDN.RFChannelType)
	require.Equal(t, uint16(0x1234), st.NXDN.SrcID)
	require.Equal(t, uint16(0x5C78), st.NXDN.DstID)

	head := st.History[0].Head()
	require.Equal(t, uint32(0x1234), head.SourceID)
	require.Equal(t, uint32(0x5C78), head.TargetID)
	require.Equal(t, "NXDN", head.SysIDString)

	// Four AMBE frames per voice frame, four frames fed.
	require.Len(t, voc.codewords, 16)
	for _, n := range voc.nBits {
		require.Equal(t, 49, n)
	}
}

func TestNXDN_LICHParityFailureStopsFrame(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Sinks.FEC = fakeFEC{}
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc
	h := &NXDNHandler{}

	payload := nxdnVoiceFrame([4]byte{})
	payload[7] ^= 2 // corrupt the parity bit
	h.Handle(st, nil, payload, nil, SyncNXDNFSWPos)

	require.False(t, st.NXDN.LICHValid)
	require.Empty(t, voc.codewords)
	require.Equal(t, 1, st.P25.Slots[0].ErrorCount)
}

func TestNXDN_ControlChannelCarriesNoVoice(t *testing.T) {
	st := NewDecoderState(Defaults())
	st.Sinks.FEC = fakeFEC{}
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc
	h := &NXDNHandler{}

	payload := append([]int8{}, buildLICH(nxdnRCCH, 0, 0, 0)...)
	payload = append(payload, make([]int8, nxdnPayload-nxdnLICHDibits)...)
	h.Handle(st, nil, payload, nil, SyncNXDNFSWPos)

	require.Equal(t, nxdnRCCH, st.NXDN.RFChannelType)
	require.Empty(t, voc.codewords)
}
