package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRC4_ParamsForKnownProtocols(t *testing.T) {
	drop, mod := RC4ParamsFor("P25P1")
	require.Equal(t, 267, drop)
	require.Equal(t, 13, mod)

	drop, mod = RC4ParamsFor("DMR")
	require.Equal(t, 256, drop)
	require.Equal(t, 9, mod)
}

func TestBuildRC4_DeterministicForSameParams(t *testing.T) {
	p := KeystreamParams{Alg: AlgRC4, Key: []byte("testkey12345678"), IV: []byte{1, 2, 3, 4}}
	ks1, err := Build(p, 128)
	require.NoError(t, err)
	ks2, err := Build(p, 128)
	require.NoError(t, err)
	require.Equal(t, ks1.Bits(128), ks2.Bits(128))
}

func TestBuildAESOFB_RequiresValidKeyLength(t *testing.T) {
	_, err := Build(KeystreamParams{Alg: AlgAESOFB, Key: []byte("short")}, 64)
	require.Error(t, err)

	ks, err := Build(KeystreamParams{Alg: AlgAESOFB, Key: make([]byte, 16), IV: make([]byte, 16)}, 128)
	require.NoError(t, err)
	require.Equal(t, 128, len(ks.Bits(128)))
}

func TestXORCodeword_SkipsAMBETrailingBitsUnlessDMRManufacturerA(t *testing.T) {
	codeword := make([]bool, 56)
	ks := make([]bool, 56)
	for i := range ks {
		ks[i] = true
	}

	out := XORCodeword(codeword, ks, true, false)
	for i := 0; i < 49; i++ {
		require.True(t, out[i], "bit %d should be flipped", i)
	}
	for i := 49; i < 56; i++ {
		require.False(t, out[i], "trailing bit %d must be left untouched", i)
	}

	outA := XORCodeword(codeword, ks, true, true)
	for i := 0; i < 56; i++ {
		require.True(t, outA[i], "DMR manufacturer-A packing must not skip trailing bits")
	}
}

func TestLFSR64_ForwardReverseRoundTrip(t *testing.T) {
	seed := uint64(0x0123456789ABCDEF)
	fwd := lfsr64Forward(seed)
	back := lfsr64Reverse(fwd)
	require.Equal(t, seed, back)
}

func TestRecoverPreviousIV_MultiStepRoundTrip(t *testing.T) {
	seed := uint64(0xDEADBEEFCAFEBABE)
	cur := seed
	for i := 0; i < 5; i++ {
		cur = lfsr64Forward(cur)
	}
	recovered := RecoverPreviousIV(cur, 5)
	require.Equal(t, seed, recovered)
}

func TestJuggleKeystreams_PromotesNextAndResetsCounters(t *testing.T) {
	w := &KeystreamWorkspace{
		Current:  []bool{true},
		Next:     []bool{false, true},
		CounterL: 3,
		CounterR: 4,
	}
	w.JuggleKeystreams()
	require.Equal(t, []bool{false, true}, w.Current)
	require.Nil(t, w.Next)
	require.Equal(t, 0, w.CounterL)
	require.Equal(t, 0, w.CounterR)
}
