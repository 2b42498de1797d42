package core

/*
 * DecoderOptions holds user-facing configuration for the decode engine.
 *
 * Every timing field is a double-precision seconds value where a
 * non-positive value means "use the built-in default" (see Defaults
 * and the P25Timing.resolve helper).
 */

// ModLock restricts the slicer to a single modulation, or lets the
// frame synchronizer pick one per sync.
type ModLock int

const (
	ModAuto ModLock = iota
	ModC4FM
	ModQPSK
	ModGFSK
)

// ProtocolEnables toggles which frame handlers the dispatcher consults.
type ProtocolEnables struct {
	P25P1    bool
	P25P2    bool
	DMR      bool
	NXDN48   bool
	NXDN96   bool
	YSF      bool
	DSTAR    bool
	M17      bool
	EDACS    bool
	ProVoice bool
	DPMR     bool
	X2TDMA   bool
}

// TunePolicy controls which call types the P25 trunking state machine
// is allowed to follow onto a voice channel.
type TunePolicy struct {
	GroupCalls   bool
	PrivateCalls bool
	DataCalls    bool
	EncCalls     bool
	UseAllowList bool
}

// AudioRoute describes an input or output device by name/URI; the
// concrete meaning is resolved by the audio sink or sample source
// collaborator that consumes it.
type AudioRoute struct {
	Spec string
}

// P25Timing carries the P25 trunking state machine's configurable
// intervals, all in seconds. A value <= 0 means "use the default".
type P25Timing struct {
	Hangtime          float64
	GrantTimeout      float64
	CCGrace           float64
	VCGrace           float64
	MinFollowDwell    float64
	GrantVoiceTimeout float64
	RetuneBackoff     float64
	ForceReleaseExtra float64
	ForceReleaseMargin float64
	P1ErrHoldPct      float64
	P1ErrHoldSeconds  float64
}

// defaultP25Timing holds the trunking follower's built-in timing
// defaults.
var defaultP25Timing = P25Timing{
	Hangtime:            2.0,
	GrantTimeout:        3.0,
	CCGrace:             5.0,
	VCGrace:             1.5,
	MinFollowDwell:      0.0,
	GrantVoiceTimeout:   3.0,
	RetuneBackoff:       1.5,
	ForceReleaseExtra:   5.0,
	ForceReleaseMargin:  1.0,
	P1ErrHoldPct:        0.0,
	P1ErrHoldSeconds:    0.0,
}

// resolve replaces every non-positive field with the built-in default.
func (t P25Timing) resolve() P25Timing {
	r := t
	pick := func(v, def float64) float64 {
		if v <= 0 {
			return def
		}
		return v
	}
	r.Hangtime = pick(t.Hangtime, defaultP25Timing.Hangtime)
	r.GrantTimeout = pick(t.GrantTimeout, defaultP25Timing.GrantTimeout)
	r.CCGrace = pick(t.CCGrace, defaultP25Timing.CCGrace)
	r.VCGrace = pick(t.VCGrace, defaultP25Timing.VCGrace)
	r.MinFollowDwell = pick(t.MinFollowDwell, defaultP25Timing.MinFollowDwell)
	r.GrantVoiceTimeout = pick(t.GrantVoiceTimeout, defaultP25Timing.GrantVoiceTimeout)
	r.RetuneBackoff = pick(t.RetuneBackoff, defaultP25Timing.RetuneBackoff)
	r.ForceReleaseExtra = pick(t.ForceReleaseExtra, defaultP25Timing.ForceReleaseExtra)
	r.ForceReleaseMargin = pick(t.ForceReleaseMargin, defaultP25Timing.ForceReleaseMargin)
	r.P1ErrHoldPct = t.P1ErrHoldPct
	r.P1ErrHoldSeconds = t.P1ErrHoldSeconds
	return r
}

// DecoderOptions is the full set of user-facing knobs.
type DecoderOptions struct {
	Protocols ProtocolEnables
	ModLock   ModLock

	TrunkingEnabled bool
	TrunkHangtime   float64 // seconds; see P25Timing.Hangtime for the SM's own copy
	Tune            TunePolicy

	AudioIn  AudioRoute
	AudioOut AudioRoute

	SymbolCaptureFile string
	WAVDir            string
	MBEDir            string

	PayloadVerbosity int

	// Keys maps key IDs to raw key material for the keystream manager.
	// An empty map means encrypted calls can only be gated, not
	// decrypted.
	Keys map[uint16][]byte

	P25 P25Timing
}

// Defaults returns a DecoderOptions with every timing resolved to its
// built-in default and conservative protocol/tuning choices.
func Defaults() DecoderOptions {
	return DecoderOptions{
		Protocols: ProtocolEnables{P25P1: true, P25P2: true},
		ModLock:   ModAuto,
		Tune: TunePolicy{
			GroupCalls: true,
		},
		P25: defaultP25Timing,
	}
}
