package core

/*
 * IDEN table: per-system mapping from identifier indices to
 * {base frequency, channel spacing, bandwidth class, TDMA flag}, and
 * channel-number -> Hz resolution.
 */

// SeedIden populates IDEN slot i (0-15) from an IDENTIFIER_UPDATE-style
// PDU. trust must come from a trusted source (MAC-VPDU, CRC-valid
// TSBK, or a test shim) to ever be non-zero.
func (s *DecoderState) SeedIden(i int, base5Hz, spacing125Hz int64, bwCode, typ int, tdma bool, trust int) {
	if i < 0 || i > 15 {
		return
	}
	s.P25.Iden[i] = IdenEntry{
		BaseFreq5Hz:   base5Hz,
		Spacing125Hz:  spacing125Hz,
		BandwidthCode: bwCode,
		Type:          typ,
		TDMA:          tdma,
		Trust:         trust,
	}
}

// ChannelToFreq resolves a P25 "channel" field to a frequency in Hz:
//
//  1. A direct trunk_chan_map hit returns that Hz verbatim.
//  2. Otherwise iden = channel>>12, ch = channel&0xFFF; freq =
//     5*base[iden] + 125*spacing[iden]*ch, gated on iden being seeded
//     and trusted.
//
// Returns 0 ("untunable") when neither path resolves.
func (s *DecoderState) ChannelToFreq(channel int) int64 {
	if hz, ok := s.P25.ChanMap[channel]; ok && hz != 0 {
		return hz
	}

	iden := (channel >> 12) & 0xF
	ch := channel & 0xFFF

	entry := s.P25.Iden[iden]
	if entry.Trust == 0 {
		return 0
	}

	return 5*entry.BaseFreq5Hz + 125*entry.Spacing125Hz*int64(ch)
}

// RecordGrantFreq seeds a direct trunk_chan_map entry for a channel
// whose frequency was computed or explicitly signaled, so a later
// lookup for the same channel short-circuits straight to it.
func (s *DecoderState) RecordGrantFreq(channel int, hz int64) {
	if s.P25.ChanMap == nil {
		s.P25.ChanMap = make(map[int]int64)
	}
	s.P25.ChanMap[channel] = hz
}
