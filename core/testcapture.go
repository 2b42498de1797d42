package core

/*
 * Deterministic test capture synthesis: builds a dibit stream
 * containing one or more catalogue sync patterns followed by
 * caller-supplied payload dibits, for driving FrameSync/Dispatcher end
 * to end without real RF.
 */

// SyncPatternDibits returns the catalogue dibit pattern for tag, or
// nil if tag isn't in the catalogue (e.g. SyncNone).
func SyncPatternDibits(tag SyncType) []int8 {
	for _, pat := range catalogue {
		if pat.tag == tag {
			return append([]int8(nil), pat.dibits...)
		}
	}
	return nil
}

// BuildTestFrame concatenates the sync pattern for tag with payload,
// ready to push one dibit at a time into a DibitRing/FrameSync pair.
func BuildTestFrame(tag SyncType, payload []int8) []int8 {
	sync := SyncPatternDibits(tag)
	out := make([]int8, 0, len(sync)+len(payload))
	out = append(out, sync...)
	out = append(out, payload...)
	return out
}

// BytesToDibits unpacks bytes MSB-first into dibits, 4 per byte — the
// inverse of dibitsToBytes, used by tests constructing TSBK/MAC-VPDU
// payloads from byte literals.
func BytesToDibits(b []byte) []int8 {
	out := make([]int8, 0, len(b)*4)
	for _, v := range b {
		for shift := 6; shift >= 0; shift -= 2 {
			out = append(out, int8((v>>uint(shift))&0x3))
		}
	}
	return out
}

// FeedDibits pushes every dibit in seq into state's ring at maximum
// reliability (255) and returns the last sync tag detected while
// feeding seq (SyncNone if there was none), simulating a noiseless
// capture replay.
func FeedDibits(state *DecoderState, opt ProtocolEnables, seq []int8) SyncType {
	var last SyncType
	for _, d := range seq {
		state.Dibits.Push(d, 255)
		if tag := state.Sync.Scan(&state.Dibits, opt); tag != SyncNone {
			last = tag
		}
	}
	return last
}
