package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTSBK_GroupVoiceChannelGrant(t *testing.T) {
	raw := make([]byte, 10)
	raw[0] = tsbkGroupVoiceChannelGrant
	raw[1] = 0 // MFID
	raw[2] = 0 // priority/service options byte, ignored
	raw[3] = 0x10
	raw[4] = 0x0A // channel 0x100A
	raw[5] = 0x45
	raw[6] = 0x67 // TG 0x4567
	raw[7], raw[8], raw[9] = 0, 0, 1

	msg, ok := ParseTSBK(raw, true)
	require.True(t, ok)
	require.Equal(t, 0x100A, msg.Channel)
	require.Equal(t, uint32(0x4567), msg.TG)
	require.Equal(t, uint32(1), msg.Src)
	require.True(t, msg.Group)
}

func TestApplyIdentifierUpdate_RejectsInvalidCRC(t *testing.T) {
	st := NewDecoderState(Defaults())
	msg := TSBKMessage{Opcode: tsbkIdentifierUpdateVUHF, Iden: 1, Base5Hz: 170200000, Spacing125: 100, ValidCRC: false}
	st.ApplyIdentifierUpdate(msg)
	require.Equal(t, 0, st.P25.Iden[1].Trust)
}

func TestApplyIdentifierUpdate_SeedsOnValidCRC(t *testing.T) {
	st := NewDecoderState(Defaults())
	msg := TSBKMessage{Opcode: tsbkIdentifierUpdateVUHF, Iden: 1, Base5Hz: 170200000, Spacing125: 100, ValidCRC: true}
	st.ApplyIdentifierUpdate(msg)
	require.Equal(t, 1, st.P25.Iden[1].Trust)
	require.Equal(t, int64(170200000), st.P25.Iden[1].BaseFreq5Hz)
}

func TestParseTSBK_SNDCPDataChannelGrant(t *testing.T) {
	raw := []byte{0x54, 0x00, 0x00, 0x10, 0x0A, 0x00, 0x00, 0x00, 0x45, 0x67, 0x00, 0x00}
	msg, ok := ParseTSBK(raw, true)
	require.True(t, ok)
	require.True(t, msg.Data)
	require.Equal(t, 0x100A, msg.Channel)
	require.Equal(t, uint32(0x4567), msg.TG)
}
