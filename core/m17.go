package core

import "github.com/charmbracelet/log"

/*
 * M17 frame handler.
 *
 * The link setup frame (LSF) carries base-40 encoded source and
 * destination callsigns, a type field, and a CRC-16 over the whole
 * 28-byte body. Stream frames interleave a LICH chunk (an LSF sixth
 * for late joiners) with a 16-bit frame number and two 8-byte Codec2
 * voice payloads. The frame number's top bit flags end of stream.
 */

const (
	m17FrameDibits = 184 // 368 post-sync bits of any 40 ms M17 frame

	m17LSFBytes = 30 // 28 body + 2 CRC

	m17LICHChunkDibits = 48 // 96-bit LICH chunk leading a stream frame
)

// m17Charset is the base-40 callsign alphabet; index 0 renders as
// nothing (an all-zero address is unset).
const m17Charset = " ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-/."

// M17Handler decodes LSF/stream/packet/BERT sync classes; only stream
// frames carry voice.
type M17Handler struct {
	Log *log.Logger
}

func (h *M17Handler) Name() string { return "M17" }

func (h *M17Handler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoM17 }

func (h *M17Handler) PayloadLen(s SyncType) int {
	if s == SyncM17PREPos || s == SyncM17PRENeg {
		return 0
	}
	return m17FrameDibits
}

func (h *M17Handler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	st.LastSlot = 0

	switch s {
	case SyncM17LSFPos, SyncM17LSFNeg:
		h.handleLSF(st, dibits)
	case SyncM17STRPos, SyncM17STRNeg:
		h.handleStream(st, dibits)
	case SyncM17PKTPos, SyncM17PKTNeg, SyncM17BRTPos, SyncM17BRTNeg:
		// Packet and BERT frames are acknowledged for sync continuity but
		// carry no voice.
	case SyncM17PREPos, SyncM17PRENeg:
		// Preamble only trains the slicer.
	}
}

// handleLSF recovers the 30-byte link setup frame, checks the M17
// CRC-16, and records addressing and stream mode.
func (h *M17Handler) handleLSF(st *DecoderState, dibits []int8) {
	raw := h.deconvolve(st, dibits)
	if len(raw) < m17LSFBytes {
		return
	}
	body := raw[:28]
	crc := uint16(raw[28])<<8 | uint16(raw[29])
	if crc16M17(body) != crc {
		st.P25.Slots[0].ErrorString = "m17 lsf crc mismatch"
		st.P25.Slots[0].ErrorCount++
		return
	}

	st.M17.Dst = m17DecodeCallsign(body[0:6])
	st.M17.Src = m17DecodeCallsign(body[6:12])
	st.M17.TypeField = uint16(body[12])<<8 | uint16(body[13])
	st.M17.StreamMode = st.M17.TypeField&0x0001 != 0
	encType := int(st.M17.TypeField>>3) & 0x3
	st.M17.Encrypted = encType != 0
	st.M17.CAN = int(st.M17.TypeField>>7) & 0xF
	st.M17.FrameNumber = 0
	st.M17.LastFrame = false

	nowWall, _ := st.nowClock()
	head := st.History[0].Head()
	head.Time = secondsToTime(nowWall)
	head.SrcStr = st.M17.Src
	head.TgtStr = st.M17.Dst
	head.GroupOrPriv = st.M17.Dst == "@ALL"
	head.SysIDString = "M17"
	st.History[0].SetHead(head)
}

// handleStream reads the frame number and two Codec2 payload halves.
// The leading LICH chunk, which duplicates LSF content for late entry,
// is always skipped; the LSF is not rebuilt from LICH chunks.
func (h *M17Handler) handleStream(st *DecoderState, dibits []int8) {
	if len(dibits) < m17FrameDibits {
		return
	}
	pushVoiceActivity(st, 0, "M17")

	raw := h.deconvolve(st, dibits[m17LICHChunkDibits:])
	if len(raw) < 18 {
		return
	}
	fn := uint16(raw[0])<<8 | uint16(raw[1])
	st.M17.FrameNumber = fn & 0x7FFF
	st.M17.LastFrame = fn&0x8000 != 0

	for i := 0; i < 2; i++ {
		frame := raw[2+i*8 : 10+i*8]
		st.emitVoice(ProtoM17, 0, frame, 64, byte(st.P25.Slots[0].ErrorCount&0xFF))
	}

	if st.M17.LastFrame {
		st.History[0].Push()
		st.Sinks.CloseMBE()
	}
}

// deconvolve runs a frame region through the convolutional
// collaborator, falling back to a direct re-pack for the uncoded test
// captures.
func (h *M17Handler) deconvolve(st *DecoderState, dibits []int8) []byte {
	bits := dibitsToBits(dibits)
	if st.Sinks.FEC != nil {
		raw, ok := st.Sinks.FEC.Conv12(bits)
		if !ok {
			st.P25.Slots[0].ErrorCount++
			return nil
		}
		return raw
	}
	return bitsToBytes(bits)
}

// m17DecodeCallsign expands a 48-bit base-40 address. The broadcast
// address renders as @ALL; zero renders empty.
func m17DecodeCallsign(b []byte) string {
	v := bitsToUint(packBytesToBits(b))
	if v == 0xFFFFFFFFFFFF {
		return "@ALL"
	}
	if v == 0 {
		return ""
	}
	out := make([]byte, 0, 9)
	for v > 0 && len(out) < 9 {
		out = append(out, m17Charset[v%40])
		v /= 40
	}
	// Trim the padding spaces base-40 zero digits become.
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}
