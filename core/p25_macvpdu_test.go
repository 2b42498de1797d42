package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMACBuffer_FixedOpcodeLength(t *testing.T) {
	buf := []byte{0x2F, 0, 0, 0, 0, 0, 0} // MAC_RELEASE, fixed length 7
	msgs := ParseMACBuffer(buf, 1, false)
	require.Len(t, msgs, 1)
	require.Equal(t, MACRelease, msgs[0].Opcode)
	require.Equal(t, "SACCH", msgs[0].Xch)
}

func TestParseMACBuffer_UnknownOpcodeFallsBackToMCOLength(t *testing.T) {
	mco := byte(15)
	buf := append([]byte{mco}, make([]byte, 20)...)
	n := macMessageLength(buf, false)
	require.Equal(t, 19-int(mco), n)
}

func TestParseMACBuffer_ClampsToRemainingBuffer(t *testing.T) {
	buf := []byte{0x2F, 0, 0} // fixed length 7 but only 3 bytes remain
	n := macMessageLength(buf, false)
	require.Equal(t, 3, n)
}

func TestParseMACBuffer_GroupVoiceGrantFields(t *testing.T) {
	raw := make([]byte, 10)
	raw[0] = 0x20
	raw[2] = 0x10
	raw[3] = 0x0A // channel 0x100A
	raw[4] = 0x45
	raw[5] = 0x67 // TG 0x4567
	raw[6], raw[7], raw[8], raw[9] = 0, 0, 0, 1

	msgs := ParseMACBuffer(raw, 0, true)
	require.Len(t, msgs, 1)
	require.Equal(t, MACGroupVoiceGrant, msgs[0].Opcode)
	require.Equal(t, 0x100A, msgs[0].Channel)
	require.Equal(t, uint32(0x4567), msgs[0].TG)
	require.Equal(t, uint32(1), msgs[0].Src)
	require.True(t, msgs[0].Group)
}
