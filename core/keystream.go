package core

/*
 * Keystream manager: builds per-call keystreams sized to frame counts
 * and XORs them onto voice codeword bits. Four constructions share one
 * Keystream iterator: RC4, AES-OFB, TYT-enhanced, and LFSR-64-reverse.
 */

// Algorithm identifies which keystream construction to use.
type Algorithm int

const (
	AlgNone Algorithm = iota
	AlgRC4
	AlgAESOFB
	AlgTYTEnhanced
	AlgLFSR64Reverse
)

// KeystreamParams carries the protocol-specific parameters a
// construction needs.
type KeystreamParams struct {
	Alg      Algorithm
	Key      []byte
	IV       []byte
	DropBytes int
	KeyModulus int
}

// rc4Params are the protocol-specific drop-byte/key-length-modulus
// pairs.
var rc4Params = map[string]struct {
	Drop    int
	Modulus int
}{
	"P25P1": {267, 13},
	"P25P2": {256, 13},
	"DMR":   {256, 9},
}

// RC4ParamsFor returns the drop-bytes/modulus pair for a protocol.
func RC4ParamsFor(protocol string) (drop, modulus int) {
	p := rc4Params[protocol]
	return p.Drop, p.Modulus
}

// KeystreamWorkspace is the per-call bit-level workspace the manager
// maintains per slot.
type KeystreamWorkspace struct {
	OctetL, OctetR     []byte
	BitstreamL, BitstreamR []bool
	CounterL, CounterR int

	// Two keystreams for P25P1's out-of-order ESS juggling: Current is
	// XORed against frames now; Next is prepared ahead for the
	// frame-9 swap.
	Current, Next []bool
}

// Keystream is an iterator of bits produced by one construction,
// consumed by frame decoders a slice at a time.
type Keystream struct {
	bits []bool
	pos  int
}

// Bits returns the next n bits (padding with false past the end,
// which callers should treat as exhausted).
func (k *Keystream) Bits(n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		if k.pos < len(k.bits) {
			out[i] = k.bits[k.pos]
			k.pos++
		}
	}
	return out
}

// Len reports the total number of bits available.
func (k *Keystream) Len() int { return len(k.bits) }

// Build constructs a keystream per params.Alg, sized to nBits.
func Build(params KeystreamParams, nBits int) (*Keystream, error) {
	switch params.Alg {
	case AlgRC4:
		return buildRC4(params, nBits)
	case AlgAESOFB:
		return buildAESOFB(params, nBits)
	case AlgTYTEnhanced:
		return buildTYTEnhanced(params, nBits)
	case AlgLFSR64Reverse:
		return buildLFSR64Reverse(params, nBits)
	default:
		return &Keystream{}, nil
	}
}

// packBytesToBits unpacks a byte slice MSB-first into a bool slice.
func packBytesToBits(b []byte) []bool {
	out := make([]bool, 0, len(b)*8)
	for _, by := range b {
		for i := 7; i >= 0; i-- {
			out = append(out, (by>>uint(i))&1 != 0)
		}
	}
	return out
}

// XORCodeword XORs a keystream slice onto a packed AMBE/IMBE codeword
// represented as bits, honoring the AMBE 7-trailing-bit skip rule:
// unless carrier is DMR-Manufacturer-A, the last 7 of a 7-octet
// (56-bit) AMBE packing are left untouched.
func XORCodeword(codeword []bool, ks []bool, isAMBE bool, dmrManufacturerA bool) []bool {
	out := make([]bool, len(codeword))
	copy(out, codeword)

	limit := len(out)
	if isAMBE && !dmrManufacturerA && len(out) >= 7 {
		limit = len(out) - 7
	}

	for i := 0; i < limit && i < len(ks); i++ {
		out[i] = out[i] != ks[i]
	}
	return out
}

// JuggleKeystreams implements the frame-9 swap: once the out-of-order
// ESS case resolves, the "next" keystream becomes "current" and the
// index restarts.
func (w *KeystreamWorkspace) JuggleKeystreams() {
	w.Current = w.Next
	w.Next = nil
	w.CounterL = 0
	w.CounterR = 0
}
