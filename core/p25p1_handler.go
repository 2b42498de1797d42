package core

import "github.com/charmbracelet/log"

/*
 * P25 Phase 1 frame handler.
 *
 * The NID immediately after the frame sync selects the data unit: TSBK
 * and PDU control blocks feed the trunking state machine; HDU/LDU1/LDU2
 * carry voice with interleaved link control and encryption sync; TDU
 * and TDULC terminate calls. Payload collection is two-stage: the
 * engine first gathers the NID, then the handler extends collection by
 * the DUID-determined body length.
 *
 * On-air P25p1 inserts one status dibit after every 35 transmitted
 * dibits (counted from frame start, sync included); the handler strips
 * these before any field extraction.
 */

// P25 NID data unit IDs relevant here. A single DUID (0x7) covers TSBK
// PDUs spanning one to three blocks; the block count is carried by the
// Last-Block flag inside the block itself, not by a distinct DUID.
const (
	duidHDU   = 0x0
	duidTDU   = 0x3
	duidLDU1  = 0x5
	duidTSBK  = 0x7
	duidLDU2  = 0xA
	duidPDU   = 0xC
	duidTDULC = 0xF
)

// Data dibit counts per frame region (status symbols excluded).
const (
	p1NIDDibits   = 32  // 64-bit NID
	p1TSBKDibits  = 98  // one 196-bit trellis-coded TSBK block
	p1LDUDibits   = 784 // 1568-bit LDU body after the NID
	p1TDULCDibits = 160 // 320-bit terminator-with-LC body
	p1HDUDibits   = 324 // 648-bit header data unit body
)

// p25SyncDibits is the on-air length of the P25p1 frame sync word.
const p25SyncDibits = 24

// P25P1Handler decodes NID + TSBK/MBT control traffic into the
// trunking state machine and extracts LDU voice codewords, applying
// the per-call keystream before they reach the vocoder adapter.
type P25P1Handler struct {
	Log *log.Logger
}

func (h *P25P1Handler) Name() string { return "P25P1" }

func (h *P25P1Handler) Match(s SyncType) bool {
	return s == SyncP25P1Pos || s == SyncP25P1Neg
}

// PayloadLen asks for the NID region first (plus the status dibit that
// lands inside it); the body is requested from ExtendPayload once the
// DUID is known.
func (h *P25P1Handler) PayloadLen(s SyncType) int {
	return onAirLen(p1NIDDibits, p25SyncDibits)
}

// ExtendPayload inspects the NID once it is complete and returns how
// many more on-air dibits the DUID's body needs. Subsequent calls
// extend multi-block TSBKs until the Last-Block flag is seen.
func (h *P25P1Handler) ExtendPayload(st *DecoderState, payload []int8, s SyncType) int {
	data := stripStatusDibits(payload, p25SyncDibits)
	if len(data) < p1NIDDibits {
		return 0
	}
	body := len(data) - p1NIDDibits
	duid, ok := nidFields(data)
	if !ok {
		// Parity failure: no body worth collecting.
		return 0
	}
	want := 0
	switch duid {
	case duidTSBK, duidPDU:
		blocks := body / p1TSBKDibits
		if blocks == 0 {
			want = p1TSBKDibits
		} else if blocks < 3 && !lastBlockSeen(data[p1NIDDibits:], blocks) {
			want = p1TSBKDibits
		}
	case duidLDU1, duidLDU2:
		if body < p1LDUDibits {
			want = p1LDUDibits - body
		}
	case duidTDULC:
		if body < p1TDULCDibits {
			want = p1TDULCDibits - body
		}
	case duidHDU:
		if body < p1HDUDibits {
			want = p1HDUDibits - body
		}
	}
	if want == 0 {
		return 0
	}
	return onAirLen(want, p25SyncDibits+len(payload))
}

// onAirLen inflates a data dibit count by the status dibits that will
// interleave it, given the absolute on-air dibit offset collection
// starts at.
func onAirLen(data, startAbs int) int {
	n := 0
	abs := startAbs
	got := 0
	for got < data {
		if abs%36 == 35 {
			n++
		} else {
			n++
			got++
		}
		abs++
	}
	return n
}

// stripStatusDibits removes the interleaved status dibits from a
// collected payload whose first element sat at on-air offset startAbs.
func stripStatusDibits(payload []int8, startAbs int) []int8 {
	out := make([]int8, 0, len(payload))
	for i, d := range payload {
		if (startAbs+i)%36 == 35 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// nidFields extracts the DUID from the status-stripped NID region and
// verifies the codeword's overall even parity (the 64th NID bit). The
// BCH(63,16) correction itself belongs to the FEC collaborator; the
// parity bit is the handler's own cheap validity gate.
func nidFields(data []int8) (duid int, ok bool) {
	if len(data) < p1NIDDibits {
		return -1, false
	}
	bits := dibitsToBits(data[:p1NIDDibits])
	if !evenParity(bits) {
		return -1, false
	}
	duid = int(bitsToUint(bits[12:16]))
	return duid, true
}

// nidNAC extracts the 12-bit network access code from a
// status-stripped NID region.
func nidNAC(data []int8) uint16 {
	if len(data) < 6 {
		return 0
	}
	return uint16(bitsToUint(dibitsToBits(data[:6])))
}

// lastBlockSeen reports whether block index blocks-1 of the TSBK body
// carried the Last-Block flag (top bit of the opcode byte).
func lastBlockSeen(body []int8, blocks int) bool {
	start := (blocks - 1) * p1TSBKDibits
	if start+4 > len(body) {
		return true
	}
	raw := dibitsToBytes(body[start : start+4])
	return len(raw) > 0 && raw[0]&0x80 != 0
}

func (h *P25P1Handler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	data := stripStatusDibits(dibits, p25SyncDibits)
	if len(data) < p1NIDDibits {
		return
	}

	nowWall, nowMono := st.nowClock()

	duid, ok := nidFields(data)
	if !ok {
		// NID BCH parity failure: report, substitute the DUID, bump the
		// header-critical-error counter, and emit no grant.
		st.P25.Slots[st.LastSlot].ErrorString = "NID PARITY MISMATCH"
		st.P25.Slots[st.LastSlot].ErrorCount++
		if h.Log != nil {
			h.Log.Warnf("p25p1: NID PARITY MISMATCH, duid=EE")
		}
		return
	}
	st.P25.NAC = nidNAC(data)
	body := data[p1NIDDibits:]

	switch duid {
	case duidTSBK, duidPDU:
		h.handleTSBKBlocks(st, sm, body, nowWall, nowMono)

	case duidHDU:
		h.handleHDU(st, body, nowWall, nowMono)

	case duidLDU1:
		h.handleLDU(st, sm, body, false, nowWall, nowMono)

	case duidLDU2:
		h.handleLDU(st, sm, body, true, nowWall, nowMono)

	case duidTDU:
		sm.End(st.LastSlot, nowWall, nowMono, nil)

	case duidTDULC:
		sm.Release(nowWall, nowMono)
	}
}

// handleTSBKBlocks walks up to three 98-dibit trellis blocks, decoding
// each through the FEC collaborator when present (the deterministic
// test shims feed uncoded bytes instead).
func (h *P25P1Handler) handleTSBKBlocks(st *DecoderState, sm *P25SM, body []int8, nowWall, nowMono float64) {
	for start := 0; start+p1TSBKDibits <= len(body) || (start == 0 && len(body) >= 48); start += p1TSBKDibits {
		end := start + p1TSBKDibits
		if end > len(body) {
			end = len(body)
		}
		block := body[start:end]

		var raw []byte
		crcValid := true
		if st.Sinks.FEC != nil {
			var ok bool
			raw, ok = st.Sinks.FEC.Trellis12(block)
			if !ok {
				st.P25.Slots[st.LastSlot].ErrorCount++
				return
			}
		} else {
			raw = dibitsToBytes(block)
		}
		if len(raw) < 12 {
			return
		}

		msg, ok := ParseTSBK(raw, crcValid)
		if !ok {
			return
		}
		h.applyTSBK(st, sm, msg, nowWall, nowMono)
		if raw[0]&0x80 != 0 {
			return
		}
	}
}

func (h *P25P1Handler) applyTSBK(st *DecoderState, sm *P25SM, msg TSBKMessage, nowWall, nowMono float64) {
	switch msg.Opcode {
	case tsbkGroupVoiceChannelGrant, tsbkUnitVoiceChannelGrant, tsbkSNDCPDataChannelGrant:
		sm.Grant(GrantEvent{
			Channel: msg.Channel,
			Group:   msg.Group,
			Data:    msg.Data,
			TGOrDst: msg.TG,
			Src:     msg.Src,
		}, nowWall, nowMono)

	case tsbkIdentifierUpdateVUHF, tsbkIdentifierUpdateAlt:
		st.ApplyIdentifierUpdate(msg)

	case tsbkCallTermination:
		sm.Release(nowWall, nowMono)
	}
}

// handleHDU captures the header's encryption sync: MI(72) MFID(8)
// ALGID(8) KID(16) TGID(16). The Golay/RS shell around these fields is
// the FEC collaborator's concern upstream; by the time the bits are
// here they are the recovered payload.
func (h *P25P1Handler) handleHDU(st *DecoderState, body []int8, nowWall, nowMono float64) {
	bits := dibitsToBits(body)
	if len(bits) < 120 {
		return
	}
	st.P25.MI = bitsToBytes(bits[0:72])
	st.P25.AlgID = int(bitsToUint(bits[80:88]))
	st.P25.KeyID = uint16(bitsToUint(bits[88:104]))
	tg := uint32(bitsToUint(bits[104:120]))
	st.P25.Encrypted = st.P25.AlgID != 0 && st.P25.AlgID != algUnencrypted

	head := st.History[st.LastSlot].Head()
	head.Time = secondsToTime(nowWall)
	head.TargetID = tg
	head.GroupOrPriv = true
	head.SysIDString = "P25P1"
	st.History[st.LastSlot].SetHead(head)

	if st.P25.Encrypted {
		st.prepareP1Keystream(st.P25.MI, false)
	}
}

const algUnencrypted = 0x80

// LDU body layout after the NID, status-stripped, in bits: nine
// 144-bit IMBE codewords with six 40-bit signaling chunks (LC on LDU1,
// ESS on LDU2) between codewords 3..8 and a 32-bit LSD block before
// the last codeword.
var lduIMBEOffsets = [9]int{0, 144, 328, 512, 696, 880, 1064, 1248, 1424}

var lduChunkOffsets = [6]int{288, 472, 656, 840, 1024, 1208}

const lduLSDOffset = 1392

func (h *P25P1Handler) handleLDU(st *DecoderState, sm *P25SM, body []int8, isLDU2 bool, nowWall, nowMono float64) {
	bits := dibitsToBits(body)
	if len(bits) < 1568 {
		return
	}
	slot := st.LastSlot
	sm.Active(slot, nowMono)
	st.P25.LastVCSyncTime = secondsToTime(nowWall)
	st.P25.LastVCSyncMono = nowMono

	// Signaling chunks: LDU1 carries the 72-bit LCW inside its RS(24,12)
	// code, LDU2 the 96-bit ESS inside RS(24,16).
	chunk := make([]bool, 0, 240)
	for _, off := range lduChunkOffsets {
		chunk = append(chunk, bits[off:off+40]...)
	}
	if isLDU2 {
		h.applyESS(st, chunk, nowWall)
	} else {
		h.applyLCW(st, sm, chunk, nowWall, nowMono)
	}

	for i, off := range lduIMBEOffsets {
		frame := bits[off : off+144]
		h.emitIMBE(st, slot, frame, i, isLDU2)
	}

	if isLDU2 {
		// Frame 9 of the superframe: the out-of-order ESS case resolves
		// here, so the prepared "next" keystream becomes current.
		if st.Keystream.Next != nil {
			st.Keystream.JuggleKeystreams()
		}
	}
}

// applyLCW decodes the link control word from LDU1's signaling chunks.
// With no FEC collaborator the first 72 bits are taken raw.
func (h *P25P1Handler) applyLCW(st *DecoderState, sm *P25SM, chunk []bool, nowWall, nowMono float64) {
	var lc []byte
	if st.Sinks.FEC != nil {
		var ok bool
		lc, ok = st.Sinks.FEC.RS2412(chunk)
		if !ok {
			st.P25.Slots[st.LastSlot].ErrorCount++
			return
		}
	} else {
		lc = bitsToBytes(chunk[:72])
	}
	if len(lc) < 9 {
		return
	}
	lcf := lc[0] & 0x3F
	switch lcf {
	case 0x00: // group voice channel user
		tg := uint32(lc[4])<<8 | uint32(lc[5])
		src := uint32(lc[6])<<16 | uint32(lc[7])<<8 | uint32(lc[8])
		head := st.History[st.LastSlot].Head()
		head.Time = secondsToTime(nowWall)
		head.SourceID = src
		head.TargetID = tg
		head.GroupOrPriv = true
		head.SysIDString = "P25P1"
		st.History[st.LastSlot].SetHead(head)
	case 0x03: // unit to unit voice channel user
		dst := uint32(lc[3])<<16 | uint32(lc[4])<<8 | uint32(lc[5])
		src := uint32(lc[6])<<16 | uint32(lc[7])<<8 | uint32(lc[8])
		head := st.History[st.LastSlot].Head()
		head.Time = secondsToTime(nowWall)
		head.SourceID = src
		head.TargetID = dst
		head.GroupOrPriv = false
		head.SysIDString = "P25P1"
		st.History[st.LastSlot].SetHead(head)
	case 0x0F: // call termination / cancellation
		sm.End(st.LastSlot, nowWall, nowMono, nil)
	}
}

// applyESS decodes LDU2's encryption sync: MI(72) ALGID(8) KID(16).
func (h *P25P1Handler) applyESS(st *DecoderState, chunk []bool, nowWall float64) {
	var ess []byte
	if st.Sinks.FEC != nil {
		var ok bool
		ess, ok = st.Sinks.FEC.RS2416(chunk)
		if !ok {
			st.P25.Slots[st.LastSlot].ErrorCount++
			return
		}
	} else {
		ess = bitsToBytes(chunk[:96])
	}
	if len(ess) < 12 {
		return
	}
	st.P25.MI = ess[0:9]
	st.P25.AlgID = int(ess[9])
	st.P25.KeyID = uint16(ess[10])<<8 | uint16(ess[11])
	st.P25.Encrypted = st.P25.AlgID != 0 && st.P25.AlgID != algUnencrypted

	if st.P25.Encrypted {
		// Format-v1 out-of-order ESS: the MI heard here seeds the *next*
		// superframe's keystream; the one for the frames still in flight
		// is recovered by running the LFSR backwards.
		st.prepareP1Keystream(st.P25.MI, true)
	}
}

// imbeFrameBits is the voice payload width the keystream consumes per
// IMBE codeword.
const imbeFrameBits = 88

// emitIMBE extracts one voice codeword, applies the per-call keystream
// when the call is encrypted and a keystream is armed, and hands the
// result down the sink fan-out.
func (h *P25P1Handler) emitIMBE(st *DecoderState, slot int, frame []bool, idx int, isLDU2 bool) {
	st.P25.P1VoiceFrames[slot]++

	var codeword []byte
	nBits := len(frame)
	if st.Sinks.FEC != nil {
		payload, ok := st.Sinks.FEC.IMBE88(frame)
		if !ok {
			st.P25.P1ErrTally[slot]++
			st.P25.Slots[slot].ErrorCount++
			return
		}
		bits := make([]bool, 0, imbeFrameBits)
		for i := 0; i < imbeFrameBits; i++ {
			bits = append(bits, payload[i/8]&(0x80>>uint(i%8)) != 0)
		}
		if st.P25.Encrypted && st.Keystream.Current != nil {
			ks := keystreamSlice(&st.Keystream, slot, imbeFrameBits)
			bits = XORCodeword(bits, ks, false, false)
		}
		codeword = bitsToBytes(bits)
		nBits = imbeFrameBits
	} else {
		codeword = bitsToBytes(frame)
	}

	errByte := byte(st.P25.Slots[slot].ErrorCount & 0xFF)
	st.emitVoice(ProtoP25P1, slot, codeword, nBits, errByte)
}

// keystreamSlice pulls the next n bits off the armed keystream,
// advancing the per-slot counter.
func keystreamSlice(w *KeystreamWorkspace, slot int, n int) []bool {
	counter := &w.CounterL
	if slot == 1 {
		counter = &w.CounterR
	}
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		pos := *counter + i
		if pos < len(w.Current) {
			out[i] = w.Current[pos]
		}
	}
	*counter += n
	return out
}

// prepareP1Keystream builds the per-call keystream(s) from the key
// table and the message indicator. With outOfOrder set (LDU2's ESS),
// the fresh MI arms the next superframe and the current one is
// recovered by reversing the 64-bit LFSR.
func (st *DecoderState) prepareP1Keystream(mi []byte, outOfOrder bool) {
	key, have := st.Opt.Keys[st.P25.KeyID]
	if !have {
		return
	}

	build := func(iv []byte) []bool {
		var params KeystreamParams
		switch st.P25.AlgID {
		case 0xAA: // RC4 / ADP
			drop, mod := RC4ParamsFor("P25P1")
			params = KeystreamParams{Alg: AlgRC4, Key: key, IV: iv, DropBytes: drop, KeyModulus: mod}
		case 0x84, 0x81: // AES-256 / DES-OFB profile carried on AES path
			params = KeystreamParams{Alg: AlgAESOFB, Key: key, IV: iv}
		default:
			return nil
		}
		ks, err := Build(params, rc4OutputOctets*8)
		if err != nil {
			return nil
		}
		return ks.Bits(ks.Len())
	}

	if !outOfOrder {
		st.Keystream.Current = build(mi)
		st.Keystream.CounterL = 0
		st.Keystream.CounterR = 0
		return
	}

	st.Keystream.Next = build(mi)
	if st.Keystream.Current == nil && len(mi) >= 8 {
		cur := bitsToUint(packBytesToBits(mi[:8]))
		prev := RecoverPreviousIV(cur, 64)
		prevMI := make([]byte, 8)
		for i := 0; i < 8; i++ {
			prevMI[i] = byte(prev >> uint(56-8*i))
		}
		st.Keystream.Current = build(prevMI)
		st.Keystream.CounterL = 0
		st.Keystream.CounterR = 0
	}
}

// dibitsToBytes packs dibit pairs MSB-first into bytes, 4 dibits per
// byte.
func dibitsToBytes(dibits []int8) []byte {
	n := len(dibits) / 4
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var b byte
		for j := 0; j < 4; j++ {
			b = b<<2 | byte(dibits[i*4+j]&0x3)
		}
		out[i] = b
	}
	return out
}
