package core

import "github.com/charmbracelet/log"

/*
 * Protocol dispatcher: picks the frame handler matching the most
 * recently detected sync tag.
 *
 * The registry is an ordered list of {name, match(SyncType) bool,
 * handle(...)} entries tried in specificity order, so a protocol whose
 * sync words overlap a more general one's is checked first.
 */

// Handler is one protocol's frame handler. Handle receives the
// post-sync payload dibits the engine collected for it (see
// PayloadLen); anything before the sync word is still reachable
// through the DecoderState's dibit ring.
type Handler interface {
	Name() string
	Match(s SyncType) bool
	Handle(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType)
}

// PayloadSized is implemented by handlers that need the engine to
// collect a fixed number of post-sync dibits before Handle runs.
type PayloadSized interface {
	PayloadLen(s SyncType) int
}

// PayloadExtender lets a handler grow its collection request once the
// already-collected prefix reveals the frame's real length (P25p1's
// DUID-determined body, multi-block TSBKs, DMR's voice superframe).
// The engine calls it each time the current request fills; a return of
// 0 means complete. st is provided so a handler can stash pre-sync
// ring history before further collection pushes it past the ring's
// look-back margin.
type PayloadExtender interface {
	ExtendPayload(st *DecoderState, payload []int8, s SyncType) int
}

// Dispatcher holds the ordered handler registry.
type Dispatcher struct {
	handlers []Handler
	log      *log.Logger
}

// NewDispatcher builds the registry in specificity order: NXDN, DSTAR,
// DMR, X2-TDMA, ProVoice, EDACS, YSF, M17, P25P2, dPMR, P25P1.
func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		log: logger,
		handlers: []Handler{
			&NXDNHandler{},
			&DSTARHandler{},
			&DMRHandler{},
			&X2TDMAHandler{},
			&ProVoiceHandler{},
			&EDACSHandler{},
			&YSFHandler{},
			&M17Handler{},
			&P25P2Handler{},
			&DPMRHandler{},
			&P25P1Handler{},
		},
	}
}

// PayloadLen reports how many post-sync dibits the matching handler
// wants collected before dispatch, or 0 for handlers that work from
// the sync tag and ring history alone.
func (d *Dispatcher) PayloadLen(s SyncType) int {
	for _, h := range d.handlers {
		if h.Match(s) {
			if ps, ok := h.(PayloadSized); ok {
				return ps.PayloadLen(s)
			}
			return 0
		}
	}
	return 0
}

// ExtendPayload forwards to the matching handler's PayloadExtender, or
// reports 0 for handlers whose frames are fixed-length.
func (d *Dispatcher) ExtendPayload(st *DecoderState, payload []int8, s SyncType) int {
	for _, h := range d.handlers {
		if h.Match(s) {
			if pe, ok := h.(PayloadExtender); ok {
				return pe.ExtendPayload(st, payload, s)
			}
			return 0
		}
	}
	return 0
}

// Dispatch finds the first matching handler for s and invokes it. It
// returns false if no handler's predicate matched, in which case the
// caller should loop back to the sync search.
func (d *Dispatcher) Dispatch(st *DecoderState, sm *P25SM, dibits []int8, reliability []uint8, s SyncType) bool {
	if s == SyncNone {
		return false
	}
	for _, h := range d.handlers {
		if h.Match(s) {
			h.Handle(st, sm, dibits, reliability, s)
			return true
		}
	}
	if d.log != nil {
		d.log.Warnf("dispatch: no handler matched sync tag %d", s)
	}
	return false
}
