package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16M17_KnownAnswer(t *testing.T) {
	// Check value from the M17 specification's CRC chapter.
	require.Equal(t, uint16(0x772B), crc16M17([]byte("123456789")))
	require.Equal(t, uint16(0xFFFF), crc16M17(nil))
}

// m17EncodeCallsign is the test-side base-40 encoder; "@ALL" maps to the
// all-ones broadcast address.
func m17EncodeCallsign(s string) []byte {
	if s == "@ALL" {
		return []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	}
	var v uint64
	for i := len(s) - 1; i >= 0; i-- {
		idx := uint64(0)
		for j, c := range m17Charset {
			if byte(c) == s[i] {
				idx = uint64(j)
				break
			}
		}
		v = v*40 + idx
	}
	out := make([]byte, 6)
	for i := 0; i < 6; i++ {
		out[i] = byte(v >> uint(40-8*i))
	}
	return out
}

func TestM17DecodeCallsign_RoundTrip(t *testing.T) {
	require.Equal(t, "N0CALL", m17DecodeCallsign(m17EncodeCallsign("N0CALL")))
	require.Equal(t, "@ALL", m17DecodeCallsign([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
	require.Equal(t, "", m17DecodeCallsign(make([]byte, 6)))
}

// buildM17LSF packs a CRC-valid link setup frame into the uncoded
// frame region (the handler takes the raw bytes when no FEC
// collaborator is attached).
func buildM17LSF(dst, src string, typeField uint16) []int8 {
	body := make([]byte, 28)
	copy(body[0:6], m17EncodeCallsign(dst))
	copy(body[6:12], m17EncodeCallsign(src))
	body[12] = byte(typeField >> 8)
	body[13] = byte(typeField)
	crc := crc16M17(body)

	raw := append(append([]byte{}, body...), byte(crc>>8), byte(crc))
	bits := bytesToBits(raw)
	for len(bits) < 2*m17FrameDibits {
		bits = append(bits, false)
	}
	return dibitsFromBits(bits[:2*m17FrameDibits])
}

func TestM17_LSFDecode(t *testing.T) {
	st := NewDecoderState(Defaults())
	h := &M17Handler{}

	// Stream mode, voice data type, CAN 7.
	typeField := uint16(0x0001 | 2<<1 | 7<<7)
	h.Handle(st, nil, buildM17LSF("@ALL", "N0CALL", typeField), nil, SyncM17LSFPos)

	require.Equal(t, "@ALL", st.M17.Dst)
	require.Equal(t, "N0CALL", st.M17.Src)
	require.True(t, st.M17.StreamMode)
	require.False(t, st.M17.Encrypted)
	require.Equal(t, 7, st.M17.CAN)

	head := st.History[0].Head()
	require.Equal(t, "N0CALL", head.SrcStr)
	require.Equal(t, "@ALL", head.TgtStr)
	require.True(t, head.GroupOrPriv)
}

func TestM17_LSFCRCMismatchRejected(t *testing.T) {
	st := NewDecoderState(Defaults())
	h := &M17Handler{}

	payload := buildM17LSF("@ALL", "N0CALL", 0x0001)
	payload[0] ^= 0x3
	h.Handle(st, nil, payload, nil, SyncM17LSFPos)

	require.Empty(t, st.M17.Src)
	require.Equal(t, 1, st.P25.Slots[0].ErrorCount)
	require.Equal(t, "m17 lsf crc mismatch", st.P25.Slots[0].ErrorString)
}

// buildM17Stream packs a stream frame: LICH chunk, then FN and two
// 8-byte Codec2 payloads in the uncoded region.
func buildM17Stream(fn uint16, last bool) []int8 {
	if last {
		fn |= 0x8000
	}
	raw := make([]byte, 18)
	raw[0] = byte(fn >> 8)
	raw[1] = byte(fn)
	for i := 2; i < 18; i++ {
		raw[i] = byte(i)
	}
	bits := make([]bool, 2*m17LICHChunkDibits) // LICH chunk, ignored here
	bits = append(bits, bytesToBits(raw)...)
	for len(bits) < 2*m17FrameDibits {
		bits = append(bits, false)
	}
	return dibitsFromBits(bits[:2*m17FrameDibits])
}

func TestM17_StreamFramesCarryVoiceAndEOT(t *testing.T) {
	st := NewDecoderState(Defaults())
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc
	h := &M17Handler{}

	h.Handle(st, nil, buildM17Stream(5, false), nil, SyncM17STRPos)
	require.Equal(t, uint16(5), st.M17.FrameNumber)
	require.False(t, st.M17.LastFrame)
	require.Len(t, voc.codewords, 2)
	require.Equal(t, 64, voc.nBits[0])
	require.Equal(t, ProtoM17, voc.protos[0])

	st.History[0].SetHead(EventRecord{SrcStr: "N0CALL", SysIDString: "M17"})
	h.Handle(st, nil, buildM17Stream(6, true), nil, SyncM17STRPos)
	require.True(t, st.M17.LastFrame)
	recent := st.History[0].Recent(1)
	require.Len(t, recent, 1)
	require.Equal(t, "N0CALL", recent[0].SrcStr)
}
