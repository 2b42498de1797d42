package core

/*
 * Remaining non-trunked protocol frame handlers: ProVoice, EDACS,
 * dPMR, X2-TDMA. None of these carry a control-channel/grant model in
 * this core; each handler recognizes its sync sub-class, tracks voice
 * activity for the event history, and hands voice codewords to the
 * sink fan-out where the protocol carries any.
 */

// pushVoiceActivity stamps slot's in-progress history record with the
// current time and the protocol name; it does not close the record
// into the history ring. Every non-trunked handler performs it.
func pushVoiceActivity(st *DecoderState, slot int, protocol string) {
	if slot < 0 || slot >= numSlots {
		slot = 0
	}
	wall, _ := st.nowClock()
	h := &st.History[slot]
	head := h.Head()
	head.Time = secondsToTime(wall)
	head.SysIDString = protocol
	h.SetHead(head)
}

// ProVoiceHandler decodes EDACS ProVoice frames: full-rate IMBE voice
// in three-codeword groups with no embedded addressing at this layer.
type ProVoiceHandler struct{}

func (h *ProVoiceHandler) Name() string { return "ProVoice" }

func (h *ProVoiceHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoProVoice }

// provoiceFrameDibits covers three 144-bit IMBE codewords per sync.
const provoiceFrameDibits = 3 * 72

func (h *ProVoiceHandler) PayloadLen(s SyncType) int { return provoiceFrameDibits }

func (h *ProVoiceHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	st.LastSlot = 0
	pushVoiceActivity(st, 0, "ProVoice")

	for i := 0; i+72 <= len(dibits); i += 72 {
		frame := dibitsToBits(dibits[i : i+72])
		var codeword []byte
		nBits := len(frame)
		if st.Sinks.FEC != nil {
			payload, ok := st.Sinks.FEC.IMBE88(frame)
			if !ok {
				st.P25.Slots[0].ErrorCount++
				continue
			}
			codeword = payload
			nBits = imbeFrameBits
		} else {
			codeword = bitsToBytes(frame)
		}
		st.emitVoice(ProtoProVoice, 0, codeword, nBits, byte(st.P25.Slots[0].ErrorCount&0xFF))
	}
}

// EDACSHandler tracks classic EDACS control signaling; the voice on an
// EDACS working channel is analog, so there is no codeword to emit —
// only activity bookkeeping for the history and watchdogs.
type EDACSHandler struct{}

func (h *EDACSHandler) Name() string { return "EDACS" }

func (h *EDACSHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoEDACS }

func (h *EDACSHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	st.LastSlot = 0
	pushVoiceActivity(st, 0, "EDACS")
}

// DPMRHandler decodes dPMR's four frame-sync sub-classes: FS1 opens a
// call with the header frame, FS2 marks payload superframes carrying
// AMBE voice, FS3 ends the call, FS4 is the packet-data variant.
type DPMRHandler struct{}

func (h *DPMRHandler) Name() string { return "dPMR" }

func (h *DPMRHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoDPMR }

// dpmrPayloadDibits covers one payload half-superframe: four 72-bit
// AMBE frames.
const dpmrPayloadDibits = 4 * 36

func (h *DPMRHandler) PayloadLen(s SyncType) int {
	if s == SyncDPMRFS2Pos || s == SyncDPMRFS2Neg {
		return dpmrPayloadDibits
	}
	return 0
}

func (h *DPMRHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	st.LastSlot = 0

	switch s {
	case SyncDPMRFS1Pos, SyncDPMRFS1Neg:
		pushVoiceActivity(st, 0, "dPMR")

	case SyncDPMRFS2Pos, SyncDPMRFS2Neg:
		pushVoiceActivity(st, 0, "dPMR")
		for i := 0; i+36 <= len(dibits); i += 36 {
			frame := dibitsToBits(dibits[i : i+36])
			var codeword []byte
			nBits := len(frame)
			if st.Sinks.FEC != nil {
				payload, ok := st.Sinks.FEC.AMBE49(frame)
				if !ok {
					st.P25.Slots[0].ErrorCount++
					continue
				}
				codeword = payload
				nBits = 49
			} else {
				codeword = bitsToBytes(frame)
			}
			st.emitVoice(ProtoDPMR, 0, codeword, nBits, byte(st.P25.Slots[0].ErrorCount&0xFF))
		}

	case SyncDPMRFS3Pos, SyncDPMRFS3Neg:
		st.History[0].Push()
		st.Sinks.CloseMBE()
	}
}

// X2TDMAHandler decodes the legacy Motorola X2-TDMA voice/data sync
// pair. The burst layout mirrors DMR's (two payload halves around the
// 48-bit center) but the FEC layout is incompatible, so it is kept
// distinct rather than folded into the DMR handler.
type X2TDMAHandler struct{}

func (h *X2TDMAHandler) Name() string { return "X2-TDMA" }

func (h *X2TDMAHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoX2TDMA }

func (h *X2TDMAHandler) PayloadLen(s SyncType) int { return dmrHalfDibits }

func (h *X2TDMAHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	slot := 0
	if s == SyncX2TDMADataPos || s == SyncX2TDMADataNeg {
		slot = 1
	}
	st.LastSlot = slot
	pushVoiceActivity(st, slot, "X2-TDMA")

	if s != SyncX2TDMAVoicePos && s != SyncX2TDMAVoiceNeg {
		return
	}
	if len(dibits) < dmrHalfDibits {
		return
	}
	// Pre-sync half still sits inside the look-back margin.
	voice1 := ringBackWindow(&st.Dibits, len(dibits)+dmrSyncDibits, dmrHalfDibits)
	bits := append(dibitsToBits(voice1), dibitsToBits(dibits[:dmrHalfDibits])...)
	for i := 0; i+72 <= len(bits); i += 72 {
		st.emitVoice(ProtoX2TDMA, slot, bitsToBytes(bits[i:i+72]), 72, byte(st.P25.Slots[slot].ErrorCount&0xFF))
	}
}
