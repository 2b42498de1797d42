package core

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

/*
 * P25 trunking state machine — the most complex component in the core.
 * Four states, driven by events the P25P1/P25P2 frame handlers emit,
 * arbitrating per-slot audio gating and orchestrating retune/
 * return-to-control transitions through a tuning-hook collaborator.
 */

// TrunkState is one of the four follower states.
type TrunkState int

const (
	StateIdle TrunkState = iota
	StateOnCC
	StateTuned
	StateHunting
)

func (s TrunkState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOnCC:
		return "ON_CC"
	case StateTuned:
		return "TUNED"
	case StateHunting:
		return "HUNTING"
	default:
		return "?"
	}
}

// TuningHook is the external collaborator that actually retunes the
// front-end.
type TuningHook interface {
	TuneToFreq(hz int64, tedSPS int)
	TuneToCC(hz int64, tedSPS int)
}

// GrantEvent carries the fields of a GROUP_GRANT/INDIV_GRANT event, or
// a data-channel grant when Data is set.
type GrantEvent struct {
	Channel   int
	FreqHint  int64
	Group     bool
	Data      bool
	TGOrDst   uint32
	Src       uint32
	Encrypted bool
	TDMA      bool
}

// P25SM is the four-state trunking follower.
type P25SM struct {
	state TrunkState
	opt   DecoderOptions
	state_ *DecoderState
	timing P25Timing
	hook   TuningHook
	log    *log.Logger

	nowWall float64
	nowMono float64

	tTune          float64
	lastReturnMono float64
	lastReturnFreq int64

	ccGraceDeadline float64
	reentrant       atomic.Bool

	allowSet map[uint32]bool

	// drainAudio is an optional hook invoked by returnToCC except while
	// the reentrancy guard is held (TickReentrant), to avoid draining
	// mid-tick.
	drainAudio func()

	// eventLog mirrors grant/refusal/release lines into the optional
	// plain-text P25 event log.
	eventLog *EventLogWriter

	lastLogMsg string
}

// NewP25SM constructs a follower in IDLE, with timing fields resolved
// to their defaults.
func NewP25SM(opt DecoderOptions, st *DecoderState, hook TuningHook, logger *log.Logger) *P25SM {
	return &P25SM{
		state:  StateIdle,
		opt:    opt,
		state_: st,
		timing: opt.P25.resolve(),
		hook:   hook,
		log:    logger,
	}
}

// State returns the current follower state.
func (sm *P25SM) State() TrunkState { return sm.state }

// SetAllowList installs the talkgroup allow-list used when
// Tune.UseAllowList is set.
func (sm *P25SM) SetAllowList(tgs []uint32) {
	sm.allowSet = make(map[uint32]bool, len(tgs))
	for _, tg := range tgs {
		sm.allowSet[tg] = true
	}
}

// SetDrainAudioHook installs the audio-drain callback used by
// returnToCC.
func (sm *P25SM) SetDrainAudioHook(cb func()) {
	sm.drainAudio = cb
}

// SetEventLog attaches the plain-text event log sink; nil disables it.
func (sm *P25SM) SetEventLog(w *EventLogWriter) {
	sm.eventLog = w
}

func (sm *P25SM) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	sm.lastLogMsg = msg
	if sm.log != nil {
		sm.log.Info(msg)
	}
	_ = sm.eventLog.Write(sm.nowWall, msg)
}

// CCHeard handles the CC_HEARD event: IDLE -> ON_CC, recording the CC
// frequency.
func (sm *P25SM) CCHeard(ccFreq int64, nowWall, nowMono float64) {
	sm.nowWall, sm.nowMono = nowWall, nowMono
	if sm.state_.P25.CCFreq != 0 {
		sm.state_.P25.CCFreq = ccFreq
	} else {
		sm.state_.P25.TrunkCCFreq = ccFreq
	}
	sm.state_.P25.LastCCSyncMono = nowMono
	if sm.state == StateIdle || sm.state == StateHunting {
		sm.state = StateOnCC
	}
}

// ccFreq returns p25_cc_freq if non-zero, else falls back to
// trunk_cc_freq.
func (sm *P25SM) ccFreq() int64 {
	if sm.state_.P25.CCFreq != 0 {
		return sm.state_.P25.CCFreq
	}
	return sm.state_.P25.TrunkCCFreq
}

// admit applies the grant admission policy gate.
func (sm *P25SM) admit(ev GrantEvent) (bool, string) {
	if !sm.opt.TrunkingEnabled {
		return false, "trunking disabled"
	}
	switch {
	case ev.Data:
		if !sm.opt.Tune.DataCalls {
			return false, "data calls not tuned"
		}
	case ev.Group:
		if !sm.opt.Tune.GroupCalls {
			return false, "group calls not tuned"
		}
	default:
		if !sm.opt.Tune.PrivateCalls {
			return false, "private calls not tuned"
		}
	}
	if ev.Encrypted && !sm.opt.Tune.EncCalls {
		return false, "encrypted call policy denies"
	}
	if sm.opt.Tune.UseAllowList && ev.Group {
		if sm.allowSet == nil || !sm.allowSet[ev.TGOrDst] {
			return false, "talkgroup not on allow list"
		}
	}
	freq := sm.state_.ChannelToFreq(ev.Channel)
	if freq == 0 {
		return false, "not tuned; channel unresolved"
	}
	return true, ""
}

// Grant handles GROUP_GRANT/INDIV_GRANT. On admission it resolves the
// channel, tunes, arms slot gates off, and transitions to TUNED.
func (sm *P25SM) Grant(ev GrantEvent, nowWall, nowMono float64) bool {
	sm.nowWall, sm.nowMono = nowWall, nowMono

	if sm.state != StateOnCC && sm.state != StateTuned {
		sm.logf("grant ignored: not on control channel (state=%s)", sm.state)
		return false
	}

	ok, reason := sm.admit(ev)
	if !ok {
		sm.logf("grant refused: %s", reason)
		return false
	}

	freq := sm.state_.ChannelToFreq(ev.Channel)
	if ev.FreqHint != 0 {
		sm.state_.RecordGrantFreq(ev.Channel, ev.FreqHint)
		freq = ev.FreqHint
	}

	if freq == sm.lastReturnFreq && nowMono-sm.lastReturnMono < sm.timing.RetuneBackoff {
		sm.logf("retune to %d suppressed: within retune backoff", freq)
		return false
	}

	slot := 0
	if ev.TDMA {
		// Slot is resolved by the caller via the channel's low bit in
		// real P25P2 grants; default to slot 0 here and let PTT/ACTIVE
		// events refine activity per slot.
	}
	_ = slot

	sm.state_.P25.VCFreq[0] = freq
	for i := range sm.state_.P25.Slots {
		sm.state_.P25.Slots[i] = SlotState{}
	}
	sm.state_.P25.CCIsTDMA = ev.TDMA

	if sm.hook != nil {
		sm.hook.TuneToFreq(freq, tedSPSFor(ev.TDMA))
	}

	sm.tTune = nowMono
	sm.state_.P25.LastVCTuneMono = nowMono
	sm.state = StateTuned

	hist := &sm.state_.History[0]
	hist.SetHead(EventRecord{
		SourceID:    ev.Src,
		TargetID:    ev.TGOrDst,
		GroupOrPriv: ev.Group,
	})
	hist.Push()

	sm.logf("tuned to %d Hz for channel 0x%x", freq, ev.Channel)
	return true
}

// TED symbol rates handed to the upstream timing-error detector on a
// retune: phase 1 control channels run 4800 sym/s C4FM, phase 2 TDMA
// runs 6000 sym/s H-DQPSK.
const (
	tedSPSP25P1 = 4800
	tedSPSP25P2 = 6000
)

func tedSPSFor(tdma bool) int {
	if tdma {
		return tedSPSP25P2
	}
	return tedSPSP25P1
}

// PTT handles the PTT(slot) event.
func (sm *P25SM) PTT(slot int, nowMono float64) {
	if slot < 0 || slot >= numSlots || sm.state != StateTuned {
		return
	}
	sm.state_.P25.Slots[slot].VoiceActive = true
	sm.state_.P25.Slots[slot].LastActiveM = nowMono
	sm.state_.P25.Slots[slot].LastPTTM = nowMono

	// Audio is gated open only while the encryption policy permits
	// playback for the current call; END clears it again.
	allowed := !sm.state_.P25.Encrypted || sm.opt.Tune.EncCalls
	sm.state_.P25.Slots[slot].AudioAllowed = allowed
	sm.state_.P25.Slots[slot].AudioAllowedLatch = allowed
}

// Active handles the ACTIVE(slot) event: update timers only.
func (sm *P25SM) Active(slot int, nowMono float64) {
	if slot < 0 || slot >= numSlots || sm.state != StateTuned {
		return
	}
	sm.state_.P25.Slots[slot].LastActiveM = nowMono
}

// End handles the END(slot) event: clears voice_active, and if the
// other slot is also inactive (or the channel is FDMA) and no queued
// audio remains, returns to CC immediately.
func (sm *P25SM) End(slot int, nowWall, nowMono float64, audioQueueEmpty func() bool) {
	if slot < 0 || slot >= numSlots || sm.state != StateTuned {
		return
	}
	sm.state_.P25.Slots[slot].VoiceActive = false
	sm.state_.P25.Slots[slot].AudioAllowed = false

	otherIdle := true
	if sm.state_.P25.CCIsTDMA {
		other := 1 - slot
		otherIdle = !sm.state_.P25.Slots[other].VoiceActive
	}

	empty := true
	if audioQueueEmpty != nil {
		empty = audioQueueEmpty()
	}

	if otherIdle && empty {
		sm.returnToCC(nowWall, nowMono)
	}
}

// Idle handles the IDLE(slot) event indicating slot silence; hangtime
// expiry is evaluated by Tick.
func (sm *P25SM) Idle(slot int, nowMono float64) {
	if slot < 0 || slot >= numSlots {
		return
	}
	sm.state_.P25.Slots[slot].VoiceActive = false
}

// Release handles a global RELEASE event (TDULC 0x4F).
func (sm *P25SM) Release(nowWall, nowMono float64) {
	if sm.state != StateTuned {
		return
	}
	sm.returnToCC(nowWall, nowMono)
}

// Tick is the periodic TICK event: hangtime expiry, grant-voice
// timeout, forced release, and CC-grace-driven HUNTING transition.
func (sm *P25SM) Tick(nowWall, nowMono float64) {
	sm.nowWall, sm.nowMono = nowWall, nowMono

	switch sm.state {
	case StateTuned:
		anyActive := false
		maxLastActive := 0.0
		for i := range sm.state_.P25.Slots {
			if sm.state_.P25.Slots[i].VoiceActive {
				anyActive = true
			}
			if sm.state_.P25.Slots[i].LastActiveM > maxLastActive {
				maxLastActive = sm.state_.P25.Slots[i].LastActiveM
			}
		}

		if !anyActive && maxLastActive > 0 && nowMono-maxLastActive > sm.timing.Hangtime {
			sm.returnToCC(nowWall, nowMono)
			return
		}

		if maxLastActive == 0 && nowMono-sm.tTune > sm.timing.GrantVoiceTimeout {
			sm.returnToCC(nowWall, nowMono)
			return
		}

		forceDeadline := sm.timing.ForceReleaseExtra + sm.timing.ForceReleaseMargin + sm.timing.Hangtime
		if nowMono-sm.tTune > forceDeadline {
			sm.returnToCC(nowWall, nowMono)
			return
		}

	case StateOnCC:
		if nowMono-sm.state_.P25.LastCCSyncMono > sm.timing.CCGrace {
			sm.state = StateHunting
		}

	case StateHunting:
		if len(sm.state_.P25.CCCandidates) > 0 {
			next := sm.state_.P25.CCCandidates[0]
			sm.state_.P25.CCCandidates = sm.state_.P25.CCCandidates[1:]
			if sm.hook != nil {
				sm.hook.TuneToCC(next, tedSPSFor(sm.state_.P25.CCIsTDMA))
			}
			sm.state_.P25.TrunkCCFreq = next
			sm.state = StateOnCC
		} else {
			// Exhausted: park on last-known CC.
			sm.state = StateOnCC
		}
	}
}

// NeighborUpdate appends candidate CC frequencies learned from a
// neighbor list broadcast.
func (sm *P25SM) NeighborUpdate(freqs []int64) {
	sm.state_.P25.CCCandidates = append(sm.state_.P25.CCCandidates, freqs...)
}

// returnToCC drains any queued audio, clears per-slot state, and
// retunes the front-end back to the control channel.
func (sm *P25SM) returnToCC(nowWall, nowMono float64) {
	if !sm.reentrant.Load() && sm.drainAudio != nil {
		sm.drainAudio()
	}

	leavingVC := sm.state_.P25.VCFreq[0]

	for i := range sm.state_.P25.Slots {
		sm.state_.P25.Slots[i] = SlotState{}
	}
	sm.state_.P25.ESSFragments = make(map[int][]byte)
	sm.state_.P25.VCFreq[0] = 0
	sm.state_.Sync.LastSync = SyncNone

	freq := sm.ccFreq()
	if sm.hook != nil && freq != 0 {
		sm.hook.TuneToCC(freq, tedSPSFor(sm.state_.P25.CCIsTDMA))
	}

	sm.lastReturnMono = nowMono
	sm.lastReturnFreq = leavingVC

	sm.state_.P25.LastCCSyncMono = nowMono
	sm.state_.P25.LastCCSyncTime = secondsToTime(nowWall)

	sm.state = StateOnCC
}

// TickReentrant calls Tick with the reentrancy guard held, for use by
// a watchdog thread invoking the SM transitively.
func (sm *P25SM) TickReentrant(nowWall, nowMono float64) {
	if !sm.reentrant.CompareAndSwap(false, true) {
		return
	}
	defer sm.reentrant.Store(false)
	sm.Tick(nowWall, nowMono)
}
