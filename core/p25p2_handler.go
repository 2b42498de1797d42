package core

import "github.com/charmbracelet/log"

/*
 * P25 Phase 2 frame handler.
 *
 * TDMA voice channel: FACCH/SACCH MAC-VPDU buffers carry the same
 * control semantics as phase 1's TSBK, parsed via p25_macvpdu.go and
 * fed to the same four-state trunking follower.
 */

// P25P2Handler decodes FACCH/SACCH MAC-VPDU buffers into the trunking
// state machine. Because the channel is TDMA, a slot's END leaves the
// machine TUNED until the partner slot also goes idle.
type P25P2Handler struct {
	Log    *log.Logger
	Tracer *MACTracer
}

func (h *P25P2Handler) Name() string { return "P25P2" }

func (h *P25P2Handler) Match(s SyncType) bool {
	return s == SyncP25P2Pos || s == SyncP25P2Neg
}

// p2BurstDibits is the post-sync remainder of a 360-bit TDMA burst.
const p2BurstDibits = 160

func (h *P25P2Handler) PayloadLen(s SyncType) int { return p2BurstDibits }

func (h *P25P2Handler) Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) {
	st.LastSync = s
	slot := st.P25.ActiveSlot
	st.LastSlot = slot

	buf := dibitsToBytes(dibits)
	if len(buf) == 0 {
		return
	}

	// Slot 0 bursts are parsed as FACCH and slot 1 bursts as SACCH. The
	// slot is read from ActiveSlot, which nothing in this package changes.
	isFACCH := slot == 0

	msgs := ParseMACBuffer(buf, slot, isFACCH)
	nowWall, nowMono := st.nowClock()

	for _, msg := range msgs {
		if h.Tracer != nil {
			_ = h.Tracer.Trace(msg)
		}
		h.apply(st, sm, msg, slot, nowWall, nowMono)
	}
}

func (h *P25P2Handler) apply(st *DecoderState, sm *P25SM, msg MACMessage, slot int, nowWall, nowMono float64) {
	switch msg.Opcode {
	case MACGroupVoiceGrant, MACIndivVoiceGrant:
		sm.Grant(GrantEvent{
			Channel:   msg.Channel,
			FreqHint:  msg.FreqHint,
			Group:     msg.Group,
			TGOrDst:   msg.TG,
			Src:       msg.Src,
			Encrypted: msg.Encrypted,
			TDMA:      true,
		}, nowWall, nowMono)

	case MACGroupVoiceChannelUpdate:
		st.RecordGrantFreq(msg.Channel, msg.FreqHint)

	case MACIdentifierUpdate:
		st.SeedIden(msg.Iden, msg.Base5Hz, msg.Spacing125, 0, boolToInt(msg.TDMAFlag), msg.TDMAFlag, 1)

	case MACSystemIdentity:
		st.P25.WACN = msg.WACN
		st.P25.SysID = msg.SysID
		st.P25.NAC = msg.NAC

	case MACPTT:
		sm.PTT(slot, nowMono)

	case MACActive:
		sm.Active(slot, nowMono)

	case MACIdle:
		sm.Idle(slot, nowMono)

	case MACEndPTT:
		sm.End(slot, nowWall, nowMono, nil)

	case MACRelease:
		sm.Release(nowWall, nowMono)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
