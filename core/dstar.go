package core

import (
	"strings"

	"github.com/charmbracelet/log"
)

/*
 * D-STAR frame handler.
 *
 * Two sync classes: the long header-data sync announcing a 660-bit
 * convolutionally coded radio header (flags + four callsign fields +
 * CRC), and the voice frame sync repeating every 21 frames. Voice
 * frames carry 72 AMBE bits plus a 24-bit slow-data segment that is
 * scrambled and assembled into 20-character text messages.
 */

const (
	dstarHDDibits    = 330 // 660 coded header bits
	dstarVoiceDibits = 48  // 72 voice + 24 slow-data bits
	dstarSlowFrames  = 21  // sync cadence of the slow-data channel
)

// dstarSlowScramble is the XOR applied to slow-data bytes on air.
var dstarSlowScramble = [3]byte{0x70, 0x4F, 0x93}

// DSTARHandler decodes the radio header and voice/slow-data frames.
type DSTARHandler struct {
	Log *log.Logger
}

func (h *DSTARHandler) Name() string { return "DSTAR" }

func (h *DSTARHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoDSTAR }

func (h *DSTARHandler) PayloadLen(s SyncType) int {
	if s == SyncDSTARHDPos || s == SyncDSTARHDNeg {
		return dstarHDDibits
	}
	return dstarVoiceDibits
}

func (h *DSTARHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	st.LastSlot = 0

	if s == SyncDSTARHDPos || s == SyncDSTARHDNeg {
		h.handleHeader(st, dibits)
		return
	}
	h.handleVoice(st, dibits)
}

// handleHeader recovers the 41-byte radio header, checks its CRC, and
// records the callsign routing.
func (h *DSTARHandler) handleHeader(st *DecoderState, dibits []int8) {
	var raw []byte
	if st.Sinks.FEC != nil {
		var ok bool
		raw, ok = st.Sinks.FEC.Conv12(dibitsToBits(dibits))
		if !ok {
			st.P25.Slots[0].ErrorCount++
			return
		}
	} else {
		raw = bitsToBytes(dibitsToBits(dibits))
	}
	if len(raw) < 41 {
		return
	}

	crc := uint16(raw[40])<<8 | uint16(raw[39])
	st.DSTAR.HeaderOK = crc16CCITTReflected(raw[:39]) == crc
	if !st.DSTAR.HeaderOK {
		st.P25.Slots[0].ErrorString = "dstar header crc mismatch"
		st.P25.Slots[0].ErrorCount++
	}

	copy(st.DSTAR.Flags[:], raw[0:3])
	st.DSTAR.RPT2 = callField(raw[3:11])
	st.DSTAR.RPT1 = callField(raw[11:19])
	st.DSTAR.URCall = callField(raw[19:27])
	st.DSTAR.MyCall = callField(raw[27:35])
	st.DSTAR.Suffix = callField(raw[35:39])
	st.DSTAR.VoiceFrame = 0
	st.DSTAR.slowAccum = nil

	nowWall, _ := st.nowClock()
	head := st.History[0].Head()
	head.Time = secondsToTime(nowWall)
	head.SrcStr = st.DSTAR.MyCall
	head.TgtStr = st.DSTAR.URCall
	head.SysIDString = "DSTAR"
	st.History[0].SetHead(head)
}

// handleVoice emits the 72-bit AMBE frame and threads the 24-bit slow
// data segment through descrambling and message assembly. The voice
// frame sync replaces the data segment once per 21-frame cycle, which
// resets the counter.
func (h *DSTARHandler) handleVoice(st *DecoderState, dibits []int8) {
	if len(dibits) < dstarVoiceDibits {
		return
	}
	pushVoiceActivity(st, 0, "DSTAR")

	voice := dibitsToBits(dibits[:36])
	h.emitAMBE(st, voice)

	data := bitsToBytes(dibitsToBits(dibits[36:48]))
	if len(data) < 3 {
		return
	}

	st.DSTAR.VoiceFrame++
	if st.DSTAR.VoiceFrame%dstarSlowFrames == 0 {
		// Data segment is the slow-data resync pattern here, not payload.
		return
	}

	for i := range data[:3] {
		data[i] ^= dstarSlowScramble[i]
	}
	h.applySlowData(st, data[:3])
}

// applySlowData assembles 0x4x-type text segments: the mini-header
// byte carries the segment index, each segment contributing five
// characters toward the 20-character message.
func (h *DSTARHandler) applySlowData(st *DecoderState, data []byte) {
	if len(st.DSTAR.slowData) == 0 {
		if data[0]&0xF0 != 0x40 {
			return
		}
		st.DSTAR.slowData = append([]byte(nil), data...)
		return
	}

	seg := append(st.DSTAR.slowData, data...)
	st.DSTAR.slowData = nil
	idx := int(seg[0] & 0x0F)
	if idx > 3 {
		return
	}

	if idx == 0 {
		st.DSTAR.slowAccum = make([]byte, 0, 20)
	}
	if st.DSTAR.slowAccum == nil || len(st.DSTAR.slowAccum) != idx*5 {
		st.DSTAR.slowAccum = nil
		return
	}
	st.DSTAR.slowAccum = append(st.DSTAR.slowAccum, seg[1:6]...)
	if idx == 3 {
		msg := strings.TrimRight(string(st.DSTAR.slowAccum), " \x00")
		if printableCallsign(msg) {
			st.DSTAR.Message = msg
		}
		st.DSTAR.slowAccum = nil
	}
}

func (h *DSTARHandler) emitAMBE(st *DecoderState, frame []bool) {
	var codeword []byte
	nBits := len(frame)
	if st.Sinks.FEC != nil {
		payload, ok := st.Sinks.FEC.AMBE49(frame)
		if !ok {
			st.P25.Slots[0].ErrorCount++
			return
		}
		codeword = payload
		nBits = 49
	} else {
		codeword = bitsToBytes(frame)
	}
	st.emitVoice(ProtoDSTAR, 0, codeword, nBits, byte(st.P25.Slots[0].ErrorCount&0xFF))
}

// callField trims a fixed-width D-STAR callsign field.
func callField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}
