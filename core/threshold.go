package core

import "sort"

/*
 * Threshold tracker: keeps slicer decision levels tracking slow gain
 * drift without reacting to a single outlier symbol.
 *
 * A rolling window of recent samples is rank-thinned on each fill: the
 * two lowest and two highest samples are averaged into a local min/max
 * pair, which itself feeds a longer history buffer so the published
 * thresholds move slowly relative to the input.
 */

const (
	thresholdWindowMax = 128 // ssize
	thresholdHistLen   = 16  // msize: depth of the min/max history buffers
)

// ThresholdTracker maintains min/max/center/upper-mid/lower-mid over
// the recent symbol window and feeds the slicer.
type ThresholdTracker struct {
	window    [thresholdWindowMax]float64
	windowLen int

	minHist   [thresholdHistLen]float64
	maxHist   [thresholdHistLen]float64
	histIdx   int
	histFull  bool

	Min, Max       float64
	Center         float64
	UpperMid       float64
	LowerMid       float64

	// Static snapshot used when RFMod is C4FM and the last sync isn't
	// P25P1: continuous adaptation is suspended and these absolute
	// levels are used instead.
	MaxRef, MinRef float64
	staticMode     bool
}

// NewThresholdTracker starts with the ±15000 initial bounds assigned on
// a no-carrier reset.
func NewThresholdTracker() *ThresholdTracker {
	t := &ThresholdTracker{}
	t.reset()
	return t
}

func (t *ThresholdTracker) reset() {
	t.Min, t.Max = -15000, 15000
	t.Center = 0
	t.UpperMid = t.Center + 5.0/8.0*(t.Max-t.Center)
	t.LowerMid = t.Center + 5.0/8.0*(t.Min-t.Center)
	t.MaxRef, t.MinRef = t.Max, t.Min
}

// SetStaticMode toggles static mode. Entering it snapshots Max/Min into
// MaxRef/MinRef; while it is on, Update stops recomputing the
// thresholds. Static mode applies when the RF
// modulation is C4FM and the last detected sync is not P25 phase 1.
func (t *ThresholdTracker) SetStaticMode(static bool) {
	if static && !t.staticMode {
		t.MaxRef, t.MinRef = t.Max, t.Min
	}
	t.staticMode = static
}

// Update pushes one sample into the window; when the window fills, it
// rank-thins the extrema and recomputes the thresholds.
func (t *ThresholdTracker) Update(sample float64) {
	t.window[t.windowLen] = sample
	t.windowLen++
	if t.windowLen < thresholdWindowMax {
		return
	}
	t.windowLen = 0

	if t.staticMode {
		// Absolute decision levels held static; nothing recomputed.
		return
	}

	sorted := make([]float64, thresholdWindowMax)
	copy(sorted, t.window[:])
	sort.Float64s(sorted)

	n := len(sorted)
	lmin := (sorted[0] + sorted[1]) / 2
	lmax := (sorted[n-1] + sorted[n-2]) / 2

	t.minHist[t.histIdx] = lmin
	t.maxHist[t.histIdx] = lmax
	t.histIdx++
	if t.histIdx >= thresholdHistLen {
		t.histIdx = 0
		t.histFull = true
	}

	depth := t.histIdx
	if t.histFull {
		depth = thresholdHistLen
	}
	var sumMin, sumMax float64
	for i := 0; i < depth; i++ {
		sumMin += t.minHist[i]
		sumMax += t.maxHist[i]
	}
	t.Min = sumMin / float64(depth)
	t.Max = sumMax / float64(depth)

	t.Center = (t.Max + t.Min) / 2
	t.UpperMid = t.Center + 5.0/8.0*(t.Max-t.Center)
	t.LowerMid = t.Center + 5.0/8.0*(t.Min-t.Center)
}

// Valid reports the ordering invariant min <= lmid <= center <= umid
// <= max that must hold after every update.
func (t *ThresholdTracker) Valid() bool {
	return t.Min <= t.LowerMid && t.LowerMid <= t.Center &&
		t.Center <= t.UpperMid && t.UpperMid <= t.Max
}
