package core

/*
 * P25 Phase 1 TSBK (Trunking Signalling Block) and MBT (Multi-Block
 * Trunking) PDU parsing.
 *
 * A standard TSBK block is 12 bytes: opcode(1, top bit is the
 * Last-Block flag, the low seven bits are the opcode value the
 * constants below use) + MFID(1) + 8 bytes of
 * opcode-specific data + a 2-byte CRC the caller has already verified
 * (or not — see NID parity handling in p25p1 handler). MBT PDUs carry
 * the same opcode space but a wider data area spread across multiple
 * blocks; this parser accepts anything long enough to hold the fields
 * a given opcode needs and ignores the rest, which is the TSBK/MBT
 * interop the field calls "MAC-bridged MBT TSBK".
 */

const (
	tsbkGroupVoiceChannelGrant = 0x40
	tsbkUnitVoiceChannelGrant  = 0x45
	tsbkSNDCPDataChannelGrant  = 0x54
	tsbkIdentifierUpdateVUHF  = 0x34
	tsbkIdentifierUpdateAlt   = 0x74
	tsbkSystemServiceBcast    = 0x3A
	tsbkCallTermination       = 0x4F
)

// TSBKMessage is a parsed TSBK/MBT control PDU.
type TSBKMessage struct {
	Opcode int
	MFID   int

	Channel  int
	FreqHint int64
	TG       uint32
	Src      uint32
	Group    bool
	Data     bool

	Iden       int
	Base5Hz    int64
	Spacing125 int64
	TDMAFlag   bool

	ValidCRC bool
}

// ParseTSBK decodes a single TSBK/MBT block. raw must start at the
// opcode byte. crcValid is supplied by the caller: NID/CRC checking is
// the P25P1 handler's responsibility, so a parity failure never
// reaches here as a grant.
func ParseTSBK(raw []byte, crcValid bool) (TSBKMessage, bool) {
	if len(raw) < 2 {
		return TSBKMessage{}, false
	}
	msg := TSBKMessage{
		Opcode:   int(raw[0] & 0x7F),
		MFID:     int(raw[1]),
		ValidCRC: crcValid,
	}

	data := raw[2:]

	switch msg.Opcode {
	case tsbkGroupVoiceChannelGrant:
		if len(data) < 8 {
			return msg, false
		}
		msg.Channel = int(be16(data[1:3]))
		msg.TG = uint32(be16(data[3:5]))
		msg.Src = be24(data[5:8])
		msg.Group = true
		return msg, true

	case tsbkUnitVoiceChannelGrant:
		if len(data) < 8 {
			return msg, false
		}
		msg.Channel = int(be16(data[1:3]))
		msg.TG = be24(data[3:6])
		msg.Src = be24(append(append([]byte{}, data[6:8]...), 0))
		msg.Group = false
		return msg, true

	case tsbkIdentifierUpdateVUHF, tsbkIdentifierUpdateAlt:
		if len(data) < 8 {
			return msg, false
		}
		msg.Iden = int(data[0] >> 4)
		msg.TDMAFlag = data[0]&0x08 != 0
		msg.Base5Hz = int64(be32(data[1:5]) & 0x0FFFFFFF)
		msg.Spacing125 = int64(be16(data[5:7]) & 0x3FF)
		return msg, true

	case tsbkSNDCPDataChannelGrant:
		if len(data) < 8 {
			return msg, false
		}
		msg.Channel = int(be16(data[1:3]))
		msg.TG = be24(data[5:8])
		msg.Data = true
		return msg, true

	case tsbkCallTermination:
		return msg, true

	default:
		return msg, true
	}
}

// ApplyIdentifierUpdate seeds the IDEN table from a TSBK/MBT
// IDENTIFIER_UPDATE message with trust=1. It is only accepted once the
// caller has confirmed ValidCRC: trust is raised only for entries set
// by a trusted PDU source or an explicit TSBK with a valid CRC.
func (s *DecoderState) ApplyIdentifierUpdate(msg TSBKMessage) {
	if !msg.ValidCRC {
		return
	}
	bwCode := 0
	typ := 0
	if msg.TDMAFlag {
		typ = 1
	}
	s.SeedIden(msg.Iden, msg.Base5Hz, msg.Spacing125, bwCode, typ, msg.TDMAFlag, 1)
}
