package core

import (
	"strings"

	"github.com/charmbracelet/log"
)

/*
 * Yaesu System Fusion frame handler.
 *
 * Each 100 ms frame after the 40-bit sync: the convolutionally coded
 * FICH (frame/channel/data-type fields), then five data-channel /
 * voice-channel pairs. Voice extraction targets the V/D mode 2 layout
 * the amateur networks run.
 */

const (
	ysfFICHDibits = 100
	ysfDCHDibits  = 20
	ysfVCHDibits  = 52
	ysfChannels   = 5

	ysfPayload = ysfFICHDibits + ysfChannels*(ysfDCHDibits+ysfVCHDibits)
)

// FICH frame information values.
const (
	ysfFIHeader     = 0
	ysfFICommunication = 1
	ysfFITerminator = 2
)

// YSFHandler decodes FICH signaling, DCH callsigns, and VCH voice.
type YSFHandler struct {
	Log *log.Logger
}

func (h *YSFHandler) Name() string { return "YSF" }

func (h *YSFHandler) Match(s SyncType) bool { return ProtocolOf(s) == ProtoYSF }

func (h *YSFHandler) PayloadLen(s SyncType) int { return ysfPayload }

func (h *YSFHandler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	st.LastSlot = 0
	if len(dibits) < ysfFICHDibits {
		pushVoiceActivity(st, 0, "YSF")
		return
	}

	fichOK := h.applyFICH(st, dibits[:ysfFICHDibits])

	var dch []byte
	for i := 0; i < ysfChannels; i++ {
		start := ysfFICHDibits + i*(ysfDCHDibits+ysfVCHDibits)
		if start+ysfDCHDibits+ysfVCHDibits > len(dibits) {
			break
		}
		if st.Sinks.FEC != nil {
			if raw, ok := st.Sinks.FEC.Conv12(dibitsToBits(dibits[start : start+ysfDCHDibits])); ok {
				dch = append(dch, raw...)
			}
		}
		vch := dibits[start+ysfDCHDibits : start+ysfDCHDibits+ysfVCHDibits]
		if !fichOK || st.YSF.FI == ysfFICommunication {
			h.emitVCH(st, dibitsToBits(vch))
		}
	}

	if fichOK {
		h.applyDCH(st, dch)
		switch st.YSF.FI {
		case ysfFICommunication:
			pushVoiceActivity(st, 0, "YSF")
		case ysfFITerminator:
			st.History[0].Push()
			st.Sinks.CloseMBE()
		}
	}
}

// applyFICH decodes the 32-bit frame information channel: FI(2) CS(2)
// CM(2) BN(2) BT(2) FN(3) FT(3), then deviation/path/data-type fields
// of which only DT matters here.
func (h *YSFHandler) applyFICH(st *DecoderState, fich []int8) bool {
	if st.Sinks.FEC == nil {
		return false
	}
	raw, ok := st.Sinks.FEC.Conv12(dibitsToBits(fich))
	if !ok || len(raw) < 4 {
		st.P25.Slots[0].ErrorCount++
		return false
	}
	bits := make([]bool, 32)
	for i := range bits {
		bits[i] = raw[i/8]&(0x80>>uint(i%8)) != 0
	}
	st.YSF.FI = int(bitsToUint(bits[0:2]))
	st.YSF.CS = int(bitsToUint(bits[2:4]))
	st.YSF.CM = int(bitsToUint(bits[4:6]))
	st.YSF.BN = int(bitsToUint(bits[6:8]))
	st.YSF.BT = int(bitsToUint(bits[8:10]))
	st.YSF.FN = int(bitsToUint(bits[10:13]))
	st.YSF.FT = int(bitsToUint(bits[13:16]))
	st.YSF.DT = int(bitsToUint(bits[24:26]))
	return true
}

// applyDCH maps the frame's assembled data-channel bytes to callsign
// fields by frame number: FN 0 carries the destination, FN 1 the
// source.
func (h *YSFHandler) applyDCH(st *DecoderState, dch []byte) {
	if len(dch) < 10 {
		return
	}
	cs := strings.TrimRight(string(dch[:10]), " \x00")
	if !printableCallsign(cs) {
		return
	}
	switch st.YSF.FN {
	case 0:
		st.YSF.Dest = cs
	case 1:
		st.YSF.Src = cs
		nowWall, _ := st.nowClock()
		head := st.History[0].Head()
		head.Time = secondsToTime(nowWall)
		head.SrcStr = st.YSF.Src
		head.TgtStr = st.YSF.Dest
		head.SysIDString = "YSF"
		st.History[0].SetHead(head)
	}
}

// emitVCH hands one 104-bit V/D mode 2 voice channel to the vocoder;
// the whitening and Golay shell inside it are the vocoder library's
// concern.
func (h *YSFHandler) emitVCH(st *DecoderState, frame []bool) {
	st.emitVoice(ProtoYSF, 0, bitsToBytes(frame), len(frame), byte(st.P25.Slots[0].ErrorCount&0xFF))
}

func printableCallsign(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7E {
			return false
		}
	}
	return true
}
