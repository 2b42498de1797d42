package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

/*
 * Engine loop: brings up I/O, drains UI/control commands, ticks the
 * P25 trunking follower, resets on carrier loss, scans for frame sync,
 * dispatches matched frames, and recomputes the threshold tracker's
 * static/continuous mode on every RF-mod change.
 */

// Command is a control-plane instruction the UI/CLI layer can submit
// to a running Engine without blocking the sample loop.
type Command struct {
	Retune    *int64
	SetMod    *ModLock
	Allowlist []uint32
	Shutdown  bool
}

// Engine owns the full decode pipeline for one RF front-end.
type Engine struct {
	Opt DecoderOptions

	State *DecoderState
	SM    *P25SM
	Dispatcher *Dispatcher

	Source  SamplesSource
	Metrics MetricsSource
	DSP     DSPControls
	Audio   AudioSink
	Vocoder VocoderAdapter
	FEC     FECDecoder
	Rig     RigctlBackend

	// EventLog mirrors trunking events into the optional plain-text
	// P25 event log; GPIO drives a hardware status line from the
	// follower state. Both are optional.
	EventLog *EventLogWriter
	GPIO     *GPIOStatusLine

	Commands chan Command

	Log *log.Logger

	noCarrierStreak int
	pending         *pendingFrame
}

// pendingFrame accumulates the post-sync payload dibits a handler
// asked for via PayloadLen. While one is open, the sync search is
// suspended — a mid-frame pattern coincidence must not restart the
// frame.
type pendingFrame struct {
	tag    SyncType
	need   int
	dibits []int8
	rel    []uint8
}

// NewEngine wires a DecoderState, P25SM, and Dispatcher together per
// opt, ready to Run once collaborators are attached.
func NewEngine(opt DecoderOptions, hook TuningHook, logger *log.Logger) *Engine {
	st := NewDecoderState(opt)
	sm := NewP25SM(opt, st, hook, logger)
	e := &Engine{
		Opt:        opt,
		State:      st,
		SM:         sm,
		Dispatcher: NewDispatcher(logger),
		Commands:   make(chan Command, 16),
		Log:        logger,
	}
	st.Sync.OnDetect(e.onSyncDetected)
	return e
}

// onSyncDetected is the frame synchronizer's side-effect hook: it
// resets per-frame bookkeeping and recomputes static/continuous
// threshold mode for the new RF modulation.
func (e *Engine) onSyncDetected(tag SyncType, prevRFMod int) {
	e.State.RFMod = e.State.Sync.RFMod
	e.State.LastSync = tag
	if tag.IsVoice() {
		e.openMBEArtifact(tag)
	}

	switch e.State.RFMod {
	case 0: // C4FM
		e.State.Thresh.SetStaticMode(ProtocolOf(tag) != ProtoP25P1)
	default:
		e.State.Thresh.SetStaticMode(false)
	}
}

// Run drives the engine until ctx is cancelled or a Command requests
// shutdown. It is the single long-running goroutine per front-end.
func (e *Engine) Run(ctx context.Context) error {
	if e.Source == nil {
		return fmt.Errorf("engine: no SamplesSource attached")
	}
	if err := e.Source.Start(ctx); err != nil {
		return fmt.Errorf("engine: starting source: %w", err)
	}
	defer e.Source.Stop()
	defer e.State.Sinks.CloseMBE()

	e.State.Sinks.Audio = e.Audio
	e.State.Sinks.Vocoder = e.Vocoder
	e.State.Sinks.FEC = e.FEC
	e.SM.SetEventLog(e.EventLog)
	if d, ok := e.Audio.(AudioDrainer); ok {
		e.SM.SetDrainAudioHook(d.Drain)
	}

	// Trunking watchdog: ticks the SM reentrantly from its own
	// goroutine so a blocking source read can't freeze SM timing, and
	// keeps the optional GPIO status line tracking follower state.
	go func() {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				wall, mono := e.State.nowClock()
				e.SM.TickReentrant(wall, mono)
				if e.GPIO != nil {
					e.GPIO.FollowTrunkState(e.SM)
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-e.Commands:
			if e.applyCommand(cmd) {
				return nil
			}
			continue
		default:
		}

		sample, err := e.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.noCarrierStreak++
			if e.noCarrierStreak == 1 {
				e.fireWatchdogs()
				e.State.NoCarrier()
			}
			continue
		}
		e.noCarrierStreak = 0

		e.tickOnSample()
		e.feedSample(sample)
	}
}

// applyCommand handles one queued Command; it returns true when the
// engine should stop.
func (e *Engine) applyCommand(cmd Command) bool {
	if cmd.Shutdown {
		return true
	}
	if cmd.Retune != nil && e.Rig != nil {
		if err := e.Rig.SetFreq(*cmd.Retune); err != nil && e.Log != nil {
			e.Log.Errorf("engine: retune command failed: %v", err)
		}
	}
	if cmd.SetMod != nil {
		e.Opt.ModLock = *cmd.SetMod
	}
	if cmd.Allowlist != nil {
		e.SM.SetAllowList(cmd.Allowlist)
	}
	return false
}

// fireWatchdogs closes out any event-history head a dropped carrier
// left dangling mid-call, mirroring each synthetic push into the event
// log.
func (e *Engine) fireWatchdogs() {
	wall, _ := e.State.nowClock()
	for slot := range e.State.History {
		if Watchdog(&e.State.History[slot]) {
			_ = e.EventLog.Write(wall, fmt.Sprintf("voice channel drop: slot %d", slot))
		}
	}
}

// openMBEArtifact starts a per-call codeword artifact file under
// Opt.MBEDir for the protocol the new sync belongs to. Open failures
// are logged and the capture skipped; decode continues regardless.
func (e *Engine) openMBEArtifact(tag SyncType) {
	if e.Opt.MBEDir == "" || e.State.Sinks.MBE != nil {
		return
	}
	kind := MBEAmb
	ext := "amb"
	switch ProtocolOf(tag) {
	case ProtoP25P1, ProtoP25P2, ProtoProVoice:
		kind, ext = MBEImb, "imb"
	case ProtoDSTAR:
		kind, ext = MBEDmb, "dmb"
	}
	name := fmt.Sprintf("%d_%s.%s", time.Now().Unix(), ProtocolOf(tag).String(), ext)
	f, err := os.Create(filepath.Join(e.Opt.MBEDir, name))
	if err != nil {
		if e.Log != nil {
			e.Log.Errorf("engine: opening mbe artifact: %v", err)
		}
		return
	}
	e.State.Sinks.OpenMBE(f, kind)
}

// tickOnSample drives the P25 SM's periodic TICK event once per
// sample-loop iteration; the SM itself debounces against its own
// timing fields so this is cheap to call at sample rate.
func (e *Engine) tickOnSample() {
	wall, mono := e.State.nowClock()
	e.SM.Tick(wall, mono)
}

// feedSample slices one baseband sample according to the active
// modulation, pushes the resulting dibit into the ring, scans for
// frame sync, and dispatches on a hit.
func (e *Engine) feedSample(sample float64) {
	var snrDB float64
	var haveSNR bool
	if e.Metrics != nil {
		m := e.Metrics.Metrics()
		haveSNR = true
		switch e.State.RFMod {
		case 1:
			snrDB = m.SNRCQPSK
		case 2:
			snrDB = m.SNRGFSK
		default:
			snrDB = m.SNRC4FM
		}
	}

	e.State.Thresh.Update(sample)

	var dibit int8
	var rel uint8
	mode := e.modeFor()
	switch mode {
	case SlicerCQPSK:
		dibit, rel = SliceCQPSK(sample, false, false, snrDB, haveSNR)
	case SlicerGFSK:
		dibit, rel = SliceGFSK(sample, &e.State.Thresh, snrDB, haveSNR)
	default:
		dibit, rel = SliceC4FM(sample, &e.State.Thresh, DefaultPositiveTable, snrDB, haveSNR)
	}

	e.State.Soft.Push(sample)
	e.State.Dibits.Push(dibit, rel)

	if p := e.pending; p != nil {
		p.dibits = append(p.dibits, dibit)
		p.rel = append(p.rel, rel)
		if len(p.dibits) >= p.need {
			if more := e.Dispatcher.ExtendPayload(e.State, p.dibits, p.tag); more > 0 {
				p.need += more
				return
			}
			e.pending = nil
			e.Dispatcher.Dispatch(e.State, e.SM, p.dibits, p.rel, p.tag)
		}
		return
	}

	tag := e.State.Sync.Scan(&e.State.Dibits, e.Opt.Protocols)
	if tag == SyncNone {
		return
	}

	need := e.Dispatcher.PayloadLen(tag)
	if need <= 0 {
		e.Dispatcher.Dispatch(e.State, e.SM, nil, nil, tag)
		return
	}
	e.pending = &pendingFrame{
		tag:    tag,
		need:   need,
		dibits: make([]int8, 0, need),
		rel:    make([]uint8, 0, need),
	}
}

// modeFor resolves the slicer mode from the ModLock option and the
// CQPSK-eligibility rule.
func (e *Engine) modeFor() SlicerMode {
	switch e.Opt.ModLock {
	case ModC4FM:
		return SlicerC4FM
	case ModQPSK:
		return SlicerCQPSK
	case ModGFSK:
		return SlicerGFSK
	default:
		var m RFMetrics
		if e.Metrics != nil {
			m = e.Metrics.Metrics()
		}
		if CQPSKEligible(m.CQPSKOn, m.TEDOn, e.Opt.Protocols.P25P1, e.Opt.Protocols.P25P2, e.State.RFMod == 1) {
			return SlicerCQPSK
		}
		if e.State.RFMod == 2 {
			return SlicerGFSK
		}
		return SlicerC4FM
	}
}

// ringBackWindow reads n dibits ending `from` positions behind the
// ring head, oldest first. from+n-1 must stay within the ring's
// pre-roll margin; handlers use this to reach the pre-sync half of a
// burst (DMR's CACH and leading info half, for example) after the
// engine has already collected their post-sync payload.
func ringBackWindow(r *DibitRing, from, n int) []int8 {
	out := make([]int8, n)
	for i := 0; i < n; i++ {
		d, _ := r.Back(from + n - 1 - i)
		out[i] = d
	}
	return out
}
