package core

/*
 * Slicer: produces (dibit, reliability) for each symbol.
 *
 * Three independent region-slicing strategies share one reliability
 * model: 4-level C4FM region slicing against the adaptive threshold
 * tracker, fixed-threshold CQPSK slicing for phase-scaled symbols, and
 * binary GFSK slicing for D-STAR-style baseband.
 */

// SlicerMode selects which region-slicing strategy is active.
type SlicerMode int

const (
	SlicerC4FM SlicerMode = iota
	SlicerCQPSK
	SlicerGFSK
)

// DibitTable maps an unsigned 2-bit region index (0..3, in the order
// {+3,+1,-1,-3}) to the 2-bit symbol a particular sync polarity
// expects. Positive and negative (inverted) tables are both supplied
// by the frame synchronizer alongside its sync tag.
type DibitTable [4]int8

// DefaultPositiveTable is the conventional Gray-coded P25/DMR C4FM
// mapping {+3,+1,-1,-3} -> {01,00,10,11}.
var DefaultPositiveTable = DibitTable{0b01, 0b00, 0b10, 0b11}

// DefaultNegativeTable is DefaultPositiveTable with polarity inverted.
var DefaultNegativeTable = DibitTable{0b11, 0b10, 0b00, 0b01}

// snrWeight returns the SNR-based reliability scaling: 0.8x at or below
// -13dB, 1.2x at or above +12dB, linear between.
func snrWeight(snrDB float64) float64 {
	const lo, hi = -13.0, 12.0
	const loW, hiW = 0.8, 1.2
	if snrDB <= lo {
		return loW
	}
	if snrDB >= hi {
		return hiW
	}
	frac := (snrDB - lo) / (hi - lo)
	return loW + frac*(hiW-loW)
}

func saturateByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// SliceC4FM implements the C4FM region mode: symbol > center splits
// the upper half (outer +3 above umid, inner +1 below); mirror for the
// lower half. Returns a region index into a DibitTable and the
// reliability byte.
func SliceC4FM(sample float64, t *ThresholdTracker, table DibitTable, snrDB float64, haveSNR bool) (int8, uint8) {
	var region int
	var dist, span float64

	switch {
	case sample > t.Center:
		if sample > t.UpperMid {
			region = 0 // +3
			span = t.Max - t.UpperMid
			dist = t.Max - sample
		} else {
			region = 1 // +1
			span = t.UpperMid - t.Center
			dist = minf(sample-t.Center, t.UpperMid-sample)
		}
	default:
		if sample < t.LowerMid {
			region = 3 // -3
			span = t.LowerMid - t.Min
			dist = sample - t.Min
		} else {
			region = 2 // -1
			span = t.Center - t.LowerMid
			dist = minf(t.Center-sample, sample-t.LowerMid)
		}
	}

	rel := regionReliability(dist, span, snrDB, haveSNR)
	return table[region], rel
}

func regionReliability(dist, span float64, snrDB float64, haveSNR bool) uint8 {
	if span <= 0 {
		return 0
	}
	norm := dist / span
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	val := norm * 255
	if haveSNR {
		val *= snrWeight(snrDB)
	}
	return saturateByte(val)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// SliceCQPSK implements the fixed-threshold π/4-DQPSK slicing mode:
// symbol >= +2 -> dibit 1; [0,+2) -> dibit 0; [-2,0) -> dibit 2;
// < -2 -> dibit 3. invert/negate provide the
// pre-rotation knob used for sync-alignment debugging.
func SliceCQPSK(sample float64, invert, negate bool, snrDB float64, haveSNR bool) (int8, uint8) {
	s := sample
	if negate {
		s = -s
	}

	var ideal float64
	var dibit int8
	switch {
	case s >= 2:
		ideal, dibit = 3, 1
	case s >= 0:
		ideal, dibit = 1, 0
	case s >= -2:
		ideal, dibit = -1, 2
	default:
		ideal, dibit = -3, 3
	}

	if invert {
		dibit ^= 0b11
	}

	errv := s - ideal
	if errv < 0 {
		errv = -errv
	}
	if errv > 1.0 {
		errv = 1.0
	}
	val := (1.0 - errv) * 255
	if haveSNR {
		val *= snrWeight(snrDB)
	}
	return dibit, saturateByte(val)
}

// SliceGFSK implements the binary above/below-center mode used by
// D-STAR and similar GFSK protocols.
func SliceGFSK(sample float64, t *ThresholdTracker, snrDB float64, haveSNR bool) (int8, uint8) {
	var bit int8
	var dist, span float64
	if sample >= t.Center {
		bit = 1
		span = t.Max - t.Center
		dist = sample - t.Center
	} else {
		bit = 0
		span = t.Center - t.Min
		dist = t.Center - sample
	}
	return bit, regionReliability(dist, span, snrDB, haveSNR)
}

// CQPSKEligible reports whether the upstream DSP path should be
// treated as emitting phase-scaled CQPSK symbols rather than raw C4FM
// baseband: true when CQPSK and timing-error-detection are both active
// and P25 phase 1 or phase 2 is enabled or was recently decoded.
func CQPSKEligible(cqpskOn, tedOn, p25p1Enabled, p25p2Enabled bool, recentP25 bool) bool {
	return cqpskOn && tedOn && (p25p1Enabled || p25p2Enabled || recentP25)
}
