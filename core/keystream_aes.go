package core

import (
	"crypto/aes"
	"fmt"
)

/*
 * AES-OFB keystream construction.
 *
 * A 16- or 32-byte key is used as given for AES-128 or AES-256. The
 * 16-byte input register is the IV with its byte order reversed; each
 * encryption yields a 16-byte output block that becomes the next input
 * (output feedback), and the blocks are unpacked to bits. The "TYT enhanced profile"
 * derives a different schedule by per-byte key reversal and extra
 * rounds before applying an RC4-like pass over fixed blocks.
 */

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func padKey32(key []byte) []byte {
	out := make([]byte, 32)
	copy(out, key)
	return out
}

func buildAESOFB(p KeystreamParams, nBits int) (*Keystream, error) {
	if len(p.Key) != 16 && len(p.Key) != 32 {
		return nil, fmt.Errorf("keystream: aes-ofb requires a 16 or 32 byte key, got %d", len(p.Key))
	}

	block, err := aes.NewCipher(p.Key)
	if err != nil {
		return nil, fmt.Errorf("keystream: aes-ofb cipher init: %w", err)
	}

	reg := make([]byte, 16)
	copy(reg, reverseBytes(p.IV))

	neededBytes := (nBits + 7) / 8
	if neededBytes == 0 {
		neededBytes = 16
	}

	var out []byte
	cur := make([]byte, 16)
	copy(cur, reg)
	for len(out) < neededBytes {
		var blockOut [16]byte
		block.Encrypt(blockOut[:], cur)
		out = append(out, blockOut[:]...)
		cur = blockOut[:]
	}

	bits := packBytesToBits(out)
	if nBits > 0 && nBits < len(bits) {
		bits = bits[:nBits]
	}
	return &Keystream{bits: bits}, nil
}

// tytPC4Rounds applies the fixed number of permutation-style rounds
// the TYT-enhanced profile uses to derive its schedule from a
// byte-reversed key, ahead of an RC4-like output pass.
const tytPC4Rounds = 4

func tytDeriveSchedule(key []byte) []byte {
	sched := reverseBytes(padKey32(key))
	for r := 0; r < tytPC4Rounds; r++ {
		for i := range sched {
			sched[i] = sched[i]<<1 | sched[i]>>7
			sched[i] ^= byte(r)
		}
	}
	return sched
}

func buildTYTEnhanced(p KeystreamParams, nBits int) (*Keystream, error) {
	if len(p.Key) == 0 {
		return nil, fmt.Errorf("keystream: tyt-enhanced requires a non-empty key")
	}
	sched := tytDeriveSchedule(p.Key)
	kiv := rc4KIV(sched, p.IV, 13)

	n := (nBits + 7) / 8
	if n == 0 {
		n = rc4OutputOctets
	}
	octets := rc4KeystreamBytes(kiv, 0, n)
	bits := packBytesToBits(octets)
	if nBits > 0 && nBits < len(bits) {
		bits = bits[:nBits]
	}
	return &Keystream{bits: bits}, nil
}
