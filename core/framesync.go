package core

/*
 * Frame synchronizer: continually consumes dibits and returns the
 * protocol sync tag matching the most recent dibit window.
 *
 * The whole catalogue of per-protocol patterns is searched in parallel
 * over the same rolling window on every dibit push; there is one
 * logical state, HUNTING, since a match is re-attempted from scratch
 * each time regardless of what was last detected.
 */

// FrameSync holds the catalogue, tolerance budget and last-detected
// sync bookkeeping.
type FrameSync struct {
	Aggressive bool

	LastSync SyncType
	RFMod    int // 0 C4FM, 1 QPSK, 2 GFSK

	// onDetect is invoked with the newly detected tag, for side
	// effects like resetting per-frame counters, rebuilding audio
	// filters, or resetting the Costas loop.
	onDetect func(tag SyncType, prevRFMod int)
}

// NewFrameSync returns a synchronizer with no prior detection.
func NewFrameSync() *FrameSync {
	return &FrameSync{LastSync: SyncNone}
}

// OnDetect registers the side-effect hook called whenever a non-NONE
// sync is found.
func (f *FrameSync) OnDetect(cb func(tag SyncType, prevRFMod int)) {
	f.onDetect = cb
}

func toleranceFor(base int, aggressive bool) int {
	if aggressive {
		return base + 1
	}
	return base
}

// Scan checks the trailing window of the ring (ending at the ring's
// current head) against every enabled catalogue pattern and returns
// the first match, preferring the longest pattern when several match
// at once (longer patterns are far less likely to be coincidental).
func (f *FrameSync) Scan(ring *DibitRing, opt ProtocolEnables) SyncType {
	head := ring.Head()
	var best syncPattern
	bestLen := -1

	for _, pat := range catalogue {
		if !pat.enabledFor(opt) {
			continue
		}
		n := len(pat.dibits)
		if head-n+1 < 0 {
			continue
		}
		mismatches := 0
		tol := toleranceFor(pat.tolerance, f.Aggressive)
		ok := true
		for i := 0; i < n; i++ {
			d, _ := ring.Back(n - 1 - i)
			if d != pat.dibits[i] {
				mismatches++
				if mismatches > tol {
					ok = false
					break
				}
			}
		}
		if ok && n > bestLen {
			best = pat
			bestLen = n
		}
	}

	if bestLen < 0 {
		return SyncNone
	}

	prevMod := f.RFMod
	f.LastSync = best.tag
	f.RFMod = rfModFor(best.tag)
	if f.onDetect != nil {
		f.onDetect(best.tag, prevMod)
	}
	return best.tag
}

// rfModFor reports the modulation class associated with a sync tag,
// for DecoderState.RFMod bookkeeping.
func rfModFor(s SyncType) int {
	switch ProtocolOf(s) {
	case ProtoP25P2:
		return 1 // QPSK/TDMA
	case ProtoDSTAR:
		return 2 // GFSK
	default:
		return 0 // C4FM by default for the rest of the catalogue
	}
}
