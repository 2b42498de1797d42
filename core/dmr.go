package core

import "github.com/charmbracelet/log"

/*
 * DMR frame handler.
 *
 * One burst is 144 dibits: CACH(12) + first payload half(54) + the
 * 48-bit center carrying either the frame sync or EMB+embedded
 * signaling + second payload half(54). Voice bursts carry three 72-bit
 * AMBE frames across the two halves; data bursts carry a 20-bit slot
 * type split around the sync and a BPTC(196,96)-coded info field.
 *
 * A voice sync only appears on burst A of the six-burst superframe, so
 * the handler collects the rest of the superframe (bursts B..F) in the
 * same dispatch and walks their EMB/embedded-LC signaling burst by
 * burst.
 */

const (
	dmrSyncDibits  = 24
	dmrCACHDibits  = 12
	dmrHalfDibits  = 54  // one voice payload half
	dmrBurstDibits = 144 // CACH + full burst
	dmrSlotTypeHalf = 5  // 10 bits of slot type on each side of a data sync

	// Post-sync collection: second half only for data; the sync burst's
	// second half plus five EMB bursts for voice.
	dmrDataPayload  = dmrSlotTypeHalf + 49
	dmrVoicePayload = dmrHalfDibits + 5*dmrBurstDibits
)

// DMR data types carried by the slot type field.
const (
	dmrDTPIHeader       = 0
	dmrDTVoiceLCHeader  = 1
	dmrDTTerminatorLC   = 2
	dmrDTCSBK           = 3
	dmrDTMBCHeader      = 4
	dmrDTMBCContinue    = 5
	dmrDTDataHeader     = 6
	dmrDTRate12Data     = 7
	dmrDTRate34Data     = 8
	dmrDTIdle           = 9
	dmrDTRate1Data      = 10
)

// DMRHandler decodes BS/MS voice and data bursts: CACH/TACT slot
// arbitration, slot type, BPTC-coded link control, EMB embedded
// signaling, and per-burst AMBE voice extraction with keystream
// application for PI-keyed calls.
type DMRHandler struct {
	Log *log.Logger
}

func (h *DMRHandler) Name() string { return "DMR" }

func (h *DMRHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoDMR }

func dmrIsData(s SyncType) bool {
	switch s {
	case SyncDMRBSDataPos, SyncDMRBSDataNeg, SyncDMRMSData, SyncDMRRCData:
		return true
	}
	return false
}

func (h *DMRHandler) PayloadLen(s SyncType) int {
	if dmrIsData(s) {
		return dmrDataPayload
	}
	return dmrHalfDibits
}

// ExtendPayload stashes the sync burst's pre-sync half (and its CACH)
// out of the ring while it is still within the look-back margin, then
// extends collection across bursts B..F of the voice superframe.
func (h *DMRHandler) ExtendPayload(st *DecoderState, payload []int8, s SyncType) int {
	if dmrIsData(s) || len(payload) != dmrHalfDibits {
		return 0
	}
	from := len(payload) + dmrSyncDibits
	st.DMR.voice1Stash = ringBackWindow(&st.Dibits, from, dmrHalfDibits)
	st.DMR.cachStash = ringBackWindow(&st.Dibits, from+dmrHalfDibits, dmrCACHDibits)
	return dmrVoicePayload - dmrHalfDibits
}

func (h *DMRHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	if dmrIsData(s) {
		h.handleData(st, dibits, s)
		return
	}
	h.handleVoiceSuperframe(st, dibits, s)
}

// cachTACT extracts the TACT bits from a 24-bit CACH block. The seven
// TACT bits sit interleaved at fixed positions; AT and TC lead, then
// the two LCSS bits, then Hamming(7,4) parity the FEC layer owns.
var tactPositions = [7]int{0, 4, 8, 12, 14, 18, 22}

func cachTACT(cach []int8) (at, tc bool, lcss int) {
	bits := dibitsToBits(cach)
	if len(bits) < 24 {
		return false, false, 0
	}
	var tact [7]bool
	for i, p := range tactPositions {
		tact[i] = bits[p]
	}
	at = tact[0]
	tc = tact[1]
	lcss = int(bitsToUint(tact[2:4]))
	return at, tc, lcss
}

// handleData decodes one data burst: slot type from the two 10-bit
// halves around the sync, then the BPTC-coded info field per data
// type. The pre-sync half is still inside the ring's look-back margin.
func (h *DMRHandler) handleData(st *DecoderState, payload []int8, s SyncType) {
	if len(payload) < dmrDataPayload {
		return
	}
	from := len(payload) + dmrSyncDibits
	st1 := ringBackWindow(&st.Dibits, from, dmrSlotTypeHalf)
	info1 := ringBackWindow(&st.Dibits, from+dmrSlotTypeHalf, 49)
	cach := ringBackWindow(&st.Dibits, from+dmrSlotTypeHalf+49, dmrCACHDibits)

	_, tc, _ := cachTACT(cach)
	slot := 0
	if tc {
		slot = 1
	}
	st.LastSlot = slot
	st.DMR.CACHFragments[slot] = bitsToBytes(dibitsToBits(cach))

	stBits := dibitsToBits(st1)
	cc := int(bitsToUint(stBits[0:4]))
	dataType := int(bitsToUint(stBits[4:8]))
	st.DMR.ColorCode = cc

	info := append(dibitsToBits(info1), dibitsToBits(payload[dmrSlotTypeHalf:dmrSlotTypeHalf+49])...)

	var lc []byte
	if st.Sinks.FEC != nil {
		var ok bool
		lc, ok = st.Sinks.FEC.BPTC19696(info)
		if !ok {
			st.P25.Slots[slot].ErrorCount++
			return
		}
	} else {
		lc = bitsToBytes(info[:96])
	}
	if len(lc) < 9 {
		return
	}

	nowWall, nowMono := st.nowClock()
	switch dataType {
	case dmrDTVoiceLCHeader:
		h.applyFullLC(st, slot, lc, nowWall)
		st.DMR.SlotLights[slot] = true

	case dmrDTTerminatorLC:
		h.applyFullLC(st, slot, lc, nowWall)
		st.History[slot].Push()
		st.DMR.SlotLights[slot] = false
		st.DMR.VoiceFrames[slot] = 0
		st.Sinks.CloseMBE()

	case dmrDTPIHeader:
		st.DMR.AlgID = int(lc[0])
		st.DMR.KeyID = int(lc[2])
		st.DMR.MI = append([]byte(nil), lc[3:7]...)
		st.DMR.Encrypted = true
		h.prepareDMRKeystream(st)

	case dmrDTCSBK:
		if h.Log != nil {
			h.Log.Debugf("dmr: csbk opcode=0x%02X fid=0x%02X slot=%d", lc[0]&0x3F, lc[1], slot)
		}

	case dmrDTDataHeader:
		st.DMR.DataHeaderBlocks[slot] = append(st.DMR.DataHeaderBlocks[slot], lc)

	case dmrDTIdle:
		st.DMR.SlotLights[slot] = false

	case dmrDTRate12Data, dmrDTRate34Data, dmrDTRate1Data, dmrDTMBCHeader, dmrDTMBCContinue:
		// Payload data blocks: out of the voice core's interest beyond
		// keeping slot activity honest.
	}
	_ = nowMono
}

// applyFullLC updates the slot's in-progress event record from a
// 9-byte full link control: FLCO, FID, service options, dst, src.
// Talker-alias FLCOs accumulate blocks instead of addressing.
func (h *DMRHandler) applyFullLC(st *DecoderState, slot int, lc []byte, nowWall float64) {
	flco := lc[0] & 0x3F
	st.DMR.MFID = int(lc[1])

	switch {
	case flco == 0x00 || flco == 0x03: // group / unit-to-unit voice
		dst := uint32(lc[3])<<16 | uint32(lc[4])<<8 | uint32(lc[5])
		src := uint32(lc[6])<<16 | uint32(lc[7])<<8 | uint32(lc[8])
		head := st.History[slot].Head()
		head.Time = secondsToTime(nowWall)
		head.SourceID = src
		head.TargetID = dst
		head.GroupOrPriv = flco == 0x00
		head.SysIDString = "DMR"
		st.History[slot].SetHead(head)

	case flco >= 0x04 && flco <= 0x07: // talker alias header + blocks 1-3
		st.DMR.TalkerAliasBlocks[slot] = append(st.DMR.TalkerAliasBlocks[slot], append([]byte(nil), lc[2:]...))

	case flco == 0x30: // GPS report; not a voice-core concern
	}
}

// handleVoiceSuperframe walks burst A (halves split around the sync)
// and bursts B..F (EMB + embedded signaling center), emitting three
// AMBE frames per burst.
func (h *DMRHandler) handleVoiceSuperframe(st *DecoderState, payload []int8, s SyncType) {
	if len(payload) < dmrHalfDibits {
		return
	}
	_, tc, _ := cachTACT(st.DMR.cachStash)
	slot := 0
	if tc {
		slot = 1
	}
	st.LastSlot = slot
	st.DMR.SlotLights[slot] = true
	pushVoiceActivity(st, slot, "DMR")

	// Burst A: stashed first half + collected second half.
	if len(st.DMR.voice1Stash) == dmrHalfDibits {
		bits := append(dibitsToBits(st.DMR.voice1Stash), dibitsToBits(payload[:dmrHalfDibits])...)
		h.emitVoiceBurst(st, slot, bits)
	}
	st.DMR.voice1Stash = nil
	st.DMR.cachStash = nil

	// Bursts B..F.
	for k := 0; k < 5; k++ {
		start := dmrHalfDibits + k*dmrBurstDibits
		if start+dmrBurstDibits > len(payload) {
			break
		}
		burst := payload[start : start+dmrBurstDibits]
		voice1 := burst[dmrCACHDibits : dmrCACHDibits+dmrHalfDibits]
		emb1 := burst[dmrCACHDibits+dmrHalfDibits : dmrCACHDibits+dmrHalfDibits+4]
		embedded := burst[dmrCACHDibits+dmrHalfDibits+4 : dmrCACHDibits+dmrHalfDibits+20]
		emb2 := burst[dmrCACHDibits+dmrHalfDibits+20 : dmrCACHDibits+dmrHalfDibits+24]
		voice2 := burst[dmrCACHDibits+dmrHalfDibits+24:]

		h.applyEMB(st, slot, append(dibitsToBits(emb1), dibitsToBits(emb2)...), dibitsToBits(embedded))

		bits := append(dibitsToBits(voice1), dibitsToBits(voice2)...)
		h.emitVoiceBurst(st, slot, bits)
	}
}

// applyEMB reads the EMB's color code, PI flag and LCSS, and feeds the
// 32-bit embedded fragment through the first/continue/last assembly
// into an embedded LC decode.
func (h *DMRHandler) applyEMB(st *DecoderState, slot int, embBits, fragment []bool) {
	if len(embBits) < 16 {
		return
	}
	st.DMR.ColorCode = int(bitsToUint(embBits[0:4]))
	lcss := int(bitsToUint(embBits[5:7]))

	switch lcss {
	case 1: // first fragment
		st.DMR.embFragments[slot] = append([]bool(nil), fragment...)
		st.DMR.embCollecting[slot] = true
	case 3: // continuation
		if st.DMR.embCollecting[slot] {
			st.DMR.embFragments[slot] = append(st.DMR.embFragments[slot], fragment...)
		}
	case 2: // last fragment
		if !st.DMR.embCollecting[slot] {
			return
		}
		frags := append(st.DMR.embFragments[slot], fragment...)
		st.DMR.embFragments[slot] = nil
		st.DMR.embCollecting[slot] = false
		if len(frags) != 128 || st.Sinks.FEC == nil {
			return
		}
		lc, ok := st.Sinks.FEC.EmbeddedLC(frags)
		if !ok || len(lc) < 9 {
			st.P25.Slots[slot].ErrorCount++
			return
		}
		st.DMR.EmbeddedSignaling[slot] = lc
		nowWall, _ := st.nowClock()
		h.applyFullLC(st, slot, lc, nowWall)
	}
}

// emitVoiceBurst splits 216 voice bits into three 72-bit AMBE frames
// and pushes each through FEC, keystream, and the sink fan-out.
func (h *DMRHandler) emitVoiceBurst(st *DecoderState, slot int, bits []bool) {
	if len(bits) < 216 {
		return
	}
	for i := 0; i < 3; i++ {
		frame := bits[i*72 : (i+1)*72]
		h.emitAMBE(st, slot, frame)
	}
}

func (h *DMRHandler) emitAMBE(st *DecoderState, slot int, frame []bool) {
	st.DMR.VoiceFrames[slot]++

	var codeword []byte
	nBits := len(frame)
	if st.Sinks.FEC != nil {
		payload, ok := st.Sinks.FEC.AMBE49(frame)
		if !ok {
			st.P25.Slots[slot].ErrorCount++
			return
		}
		// Work on the full 7-octet packing: the trailing-bit-skip rule
		// is defined against the padded 56-bit frame, not the bare
		// 49-bit payload.
		bits := make([]bool, 56)
		for i := 0; i < 49; i++ {
			bits[i] = payload[i/8]&(0x80>>uint(i%8)) != 0
		}
		if st.DMR.Encrypted && st.Keystream.Current != nil {
			ks := keystreamSlice(&st.Keystream, slot, 56)
			bits = XORCodeword(bits, ks, true, st.DMR.MFID == 0x10)
		}
		codeword = bitsToBytes(bits[:49])
		nBits = 49
	} else {
		codeword = bitsToBytes(frame)
	}

	errByte := byte(st.P25.Slots[slot].ErrorCount & 0xFF)
	st.emitVoice(ProtoDMR, slot, codeword, nBits, errByte)
}

// prepareDMRKeystream arms the per-call keystream from the PI header's
// algorithm, key id and MI.
func (h *DMRHandler) prepareDMRKeystream(st *DecoderState) {
	key, have := st.Opt.Keys[uint16(st.DMR.KeyID)]
	if !have {
		return
	}
	var params KeystreamParams
	switch st.DMR.AlgID {
	case 0x21: // RC4 "enhanced privacy"
		drop, mod := RC4ParamsFor("DMR")
		params = KeystreamParams{Alg: AlgRC4, Key: key, IV: st.DMR.MI, DropBytes: drop, KeyModulus: mod}
	case 0x25: // AES-256
		params = KeystreamParams{Alg: AlgAESOFB, Key: key, IV: st.DMR.MI}
	case 0x02: // TYT enhanced profile
		params = KeystreamParams{Alg: AlgTYTEnhanced, Key: key, IV: st.DMR.MI}
	default:
		return
	}
	ks, err := Build(params, rc4OutputOctets*8)
	if err != nil {
		if h.Log != nil {
			h.Log.Warnf("dmr: keystream build failed: %v", err)
		}
		return
	}
	st.Keystream.Current = ks.Bits(ks.Len())
	st.Keystream.CounterL = 0
	st.Keystream.CounterR = 0
}
