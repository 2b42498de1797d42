package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildDSTARHeader assembles the 41-byte radio header with a valid
// CRC, padded out to the 660-bit coded region the handler collects.
func buildDSTARHeader(mycall, urcall, rpt1, rpt2 string) []int8 {
	raw := make([]byte, 41)
	field := func(at int, s string, width int) {
		for i := 0; i < width; i++ {
			if i < len(s) {
				raw[at+i] = s[i]
			} else {
				raw[at+i] = ' '
			}
		}
	}
	field(3, rpt2, 8)
	field(11, rpt1, 8)
	field(19, urcall, 8)
	field(27, mycall, 8)
	field(35, "ID51", 4)
	crc := crc16CCITTReflected(raw[:39])
	raw[39] = byte(crc)
	raw[40] = byte(crc >> 8)

	bits := bytesToBits(raw)
	for len(bits) < 2*dstarHDDibits {
		bits = append(bits, false)
	}
	return dibitsFromBits(bits)
}

func TestDSTAR_HeaderDecode(t *testing.T) {
	st := NewDecoderState(Defaults())
	h := &DSTARHandler{}

	h.Handle(st, nil, buildDSTARHeader("N0CALL", "CQCQCQ", "W1ABC  B", "W1ABC  G"), nil, SyncDSTARHDPos)

	require.True(t, st.DSTAR.HeaderOK)
	require.Equal(t, "N0CALL", st.DSTAR.MyCall)
	require.Equal(t, "CQCQCQ", st.DSTAR.URCall)
	require.Equal(t, "W1ABC  B", st.DSTAR.RPT1)
	require.Equal(t, "W1ABC  G", st.DSTAR.RPT2)
	require.Equal(t, "ID51", st.DSTAR.Suffix)

	head := st.History[0].Head()
	require.Equal(t, "N0CALL", head.SrcStr)
	require.Equal(t, "CQCQCQ", head.TgtStr)
}

func TestDSTAR_HeaderCRCMismatchFlagged(t *testing.T) {
	st := NewDecoderState(Defaults())
	h := &DSTARHandler{}

	payload := buildDSTARHeader("N0CALL", "CQCQCQ", "", "")
	payload[0] ^= 0x3
	h.Handle(st, nil, payload, nil, SyncDSTARHDPos)

	require.False(t, st.DSTAR.HeaderOK)
	require.Equal(t, 1, st.P25.Slots[0].ErrorCount)
}

// dstarVoiceFrame builds one 48-dibit voice frame with the given
// already-scrambled slow-data bytes.
func dstarVoiceFrame(slow [3]byte) []int8 {
	bits := make([]bool, 72)
	bits = append(bits, bytesToBits(slow[:])...)
	return dibitsFromBits(bits)
}

func TestDSTAR_SlowDataMessageAssembly(t *testing.T) {
	st := NewDecoderState(Defaults())
	voc := &collectingVocoder{}
	st.Sinks.Vocoder = voc
	h := &DSTARHandler{}

	msg := "HELLO WORLD DVCORE  "
	for seg := 0; seg < 4; seg++ {
		chars := msg[seg*5 : seg*5+5]
		first := [3]byte{byte(0x40 | seg), chars[0], chars[1]}
		second := [3]byte{chars[2], chars[3], chars[4]}
		for i := range first {
			first[i] ^= dstarSlowScramble[i]
			second[i] ^= dstarSlowScramble[i]
		}
		h.Handle(st, nil, dstarVoiceFrame(first), nil, SyncDSTARVoicePos)
		h.Handle(st, nil, dstarVoiceFrame(second), nil, SyncDSTARVoicePos)
	}

	require.Equal(t, "HELLO WORLD DVCORE", st.DSTAR.Message)
	// One 72-bit AMBE frame per voice frame, raw without a FEC
	// collaborator.
	require.Len(t, voc.codewords, 8)
	for _, n := range voc.nBits {
		require.Equal(t, 72, n)
	}
}
