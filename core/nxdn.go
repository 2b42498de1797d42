package core

import "github.com/charmbracelet/log"

/*
 * NXDN frame handler.
 *
 * After the FSW: LICH (one logical bit per symbol in the dibit sign
 * position), a convolutional SACCH whose 3-byte fragments assemble a
 * VCALL/control message over four frames, then four 72-bit AMBE voice
 * channels.
 */

const (
	nxdnLICHDibits  = 8
	nxdnSACCHDibits = 30
	nxdnVCHFrames   = 4
	nxdnVCHDibits   = 36

	nxdnPayload = nxdnLICHDibits + nxdnSACCHDibits + nxdnVCHFrames*nxdnVCHDibits
)

// NXDN RF channel types from the LICH.
const (
	nxdnRCCH = 0
	nxdnRTCH = 1
	nxdnRDCH = 2
)

// NXDNHandler decodes LICH/SACCH signaling and VCH voice. NXDN has no
// slot concept at this layer; everything books to slot 0.
type NXDNHandler struct {
	Log *log.Logger

	sacchAccum []byte
	sacchCount int
}

func (h *NXDNHandler) Name() string { return "NXDN" }

func (h *NXDNHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoNXDN }

func (h *NXDNHandler) PayloadLen(s SyncType) int { return nxdnPayload }

func (h *NXDNHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	st.LastSlot = 0
	if len(dibits) < nxdnLICHDibits {
		return
	}

	if !h.applyLICH(st, dibits[:nxdnLICHDibits]) {
		return
	}

	if len(dibits) >= nxdnLICHDibits+nxdnSACCHDibits {
		h.applySACCH(st, dibits[nxdnLICHDibits:nxdnLICHDibits+nxdnSACCHDibits])
	}

	if st.NXDN.RFChannelType == nxdnRCCH {
		// Control channel frame: no voice payload follows.
		return
	}

	pushVoiceActivity(st, 0, "NXDN")
	for i := 0; i < nxdnVCHFrames; i++ {
		start := nxdnLICHDibits + nxdnSACCHDibits + i*nxdnVCHDibits
		if start+nxdnVCHDibits > len(dibits) {
			break
		}
		h.emitAMBE(st, dibitsToBits(dibits[start:start+nxdnVCHDibits]))
	}
}

// applyLICH reads the link information channel: RF channel type(2),
// functional channel(2), option(2), direction(1), even parity(1).
func (h *NXDNHandler) applyLICH(st *DecoderState, lich []int8) bool {
	bits := dibitMSBs(lich)
	if !evenParity(bits) {
		st.NXDN.LICHValid = false
		st.P25.Slots[0].ErrorCount++
		return false
	}
	st.NXDN.RFChannelType = int(bitsToUint(bits[0:2]))
	st.NXDN.FunctionalCh = int(bitsToUint(bits[2:4]))
	st.NXDN.Option = int(bitsToUint(bits[4:6]))
	st.NXDN.Direction = int(bitsToUint(bits[6:7]))
	st.NXDN.LICHValid = true
	return true
}

// applySACCH decodes one 60-bit SACCH through the convolutional
// collaborator and feeds its fragment into the four-frame message
// accumulator. Structure field 3 marks the final fragment.
func (h *NXDNHandler) applySACCH(st *DecoderState, sacch []int8) {
	if st.Sinks.FEC == nil {
		return
	}
	raw, ok := st.Sinks.FEC.Conv12(dibitsToBits(sacch))
	if !ok || len(raw) < 4 {
		st.P25.Slots[0].ErrorCount++
		return
	}

	structure := int(raw[0] >> 6)
	if structure == 0 {
		h.sacchAccum = h.sacchAccum[:0]
		h.sacchCount = 0
	}
	h.sacchAccum = append(h.sacchAccum, raw[1:4]...)
	h.sacchCount++
	if structure != 3 || h.sacchCount < 4 {
		return
	}

	msg := h.sacchAccum
	h.sacchAccum = nil
	h.sacchCount = 0
	if len(msg) < 9 {
		return
	}

	msgType := int(msg[0] & 0x3F)
	if msgType != 0x01 { // VCALL
		return
	}
	st.NXDN.SrcID = be16(msg[3:5])
	st.NXDN.DstID = be16(msg[5:7])

	nowWall, _ := st.nowClock()
	head := st.History[0].Head()
	head.Time = secondsToTime(nowWall)
	head.SourceID = uint32(st.NXDN.SrcID)
	head.TargetID = uint32(st.NXDN.DstID)
	head.GroupOrPriv = true
	head.SysIDString = "NXDN"
	st.History[0].SetHead(head)
}

func (h *NXDNHandler) emitAMBE(st *DecoderState, frame []bool) {
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
	st.emitVoice(ProtoNXDN, 0, codeword, nBits, byte(st.P25.Slots[0].ErrorCount&0xFF))
}
