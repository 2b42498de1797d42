package core

/*
 * Frame synchronizer sync-tag enumeration and pattern catalogue.
 *
 * Each protocol's frame sync word is a fixed dibit pattern hunted across
 * the incoming symbol stream with a per-pattern Hamming tolerance, so a
 * noisy channel can still register a hit a few dibits off from ideal.
 */

// SyncType identifies protocol, polarity, and sub-class for a detected
// frame sync.
type SyncType int

const (
	SyncNone SyncType = iota
	SyncP25P1Pos
	SyncP25P1Neg
	SyncP25P2Pos
	SyncP25P2Neg
	SyncDMRBSVoicePos
	SyncDMRBSVoiceNeg
	SyncDMRBSDataPos
	SyncDMRBSDataNeg
	SyncDMRMSVoice
	SyncDMRMSData
	SyncDMRRCData
	SyncNXDNFSWPos
	SyncNXDNFSWNeg
	SyncX2TDMAVoicePos
	SyncX2TDMAVoiceNeg
	SyncX2TDMADataPos
	SyncX2TDMADataNeg
	SyncDSTARVoicePos
	SyncDSTARVoiceNeg
	SyncDSTARHDPos
	SyncDSTARHDNeg
	SyncProVoicePos
	SyncProVoiceNeg
	SyncEDACSPos
	SyncEDACSNeg
	SyncYSFPos
	SyncYSFNeg
	SyncM17LSFPos
	SyncM17LSFNeg
	SyncM17STRPos
	SyncM17STRNeg
	SyncM17BRTPos
	SyncM17BRTNeg
	SyncM17PKTPos
	SyncM17PKTNeg
	SyncM17PREPos
	SyncM17PRENeg
	SyncDPMRFS1Pos
	SyncDPMRFS1Neg
	SyncDPMRFS2Pos
	SyncDPMRFS2Neg
	SyncDPMRFS3Pos
	SyncDPMRFS3Neg
	SyncDPMRFS4Pos
	SyncDPMRFS4Neg
)

// Protocol identifies the protocol family a SyncType belongs to,
// independent of polarity/sub-class — the dispatcher matches on this.
type Protocol int

const (
	ProtoNone Protocol = iota
	ProtoP25P1
	ProtoP25P2
	ProtoDMR
	ProtoNXDN
	ProtoX2TDMA
	ProtoDSTAR
	ProtoProVoice
	ProtoEDACS
	ProtoYSF
	ProtoM17
	ProtoDPMR
)

// String names the protocol family for logs and artifact file names.
func (p Protocol) String() string {
	switch p {
	case ProtoP25P1:
		return "p25p1"
	case ProtoP25P2:
		return "p25p2"
	case ProtoDMR:
		return "dmr"
	case ProtoNXDN:
		return "nxdn"
	case ProtoX2TDMA:
		return "x2tdma"
	case ProtoDSTAR:
		return "dstar"
	case ProtoProVoice:
		return "provoice"
	case ProtoEDACS:
		return "edacs"
	case ProtoYSF:
		return "ysf"
	case ProtoM17:
		return "m17"
	case ProtoDPMR:
		return "dpmr"
	default:
		return "none"
	}
}

// ProtocolOf maps a sync tag to its protocol family.
func ProtocolOf(s SyncType) Protocol {
	switch {
	case s == SyncP25P1Pos || s == SyncP25P1Neg:
		return ProtoP25P1
	case s == SyncP25P2Pos || s == SyncP25P2Neg:
		return ProtoP25P2
	case s >= SyncDMRBSVoicePos && s <= SyncDMRRCData:
		return ProtoDMR
	case s == SyncNXDNFSWPos || s == SyncNXDNFSWNeg:
		return ProtoNXDN
	case s >= SyncX2TDMAVoicePos && s <= SyncX2TDMADataNeg:
		return ProtoX2TDMA
	case s == SyncDSTARVoicePos || s == SyncDSTARVoiceNeg || s == SyncDSTARHDPos || s == SyncDSTARHDNeg:
		return ProtoDSTAR
	case s == SyncProVoicePos || s == SyncProVoiceNeg:
		return ProtoProVoice
	case s == SyncEDACSPos || s == SyncEDACSNeg:
		return ProtoEDACS
	case s == SyncYSFPos || s == SyncYSFNeg:
		return ProtoYSF
	case s >= SyncM17LSFPos && s <= SyncM17PRENeg:
		return ProtoM17
	case s >= SyncDPMRFS1Pos && s <= SyncDPMRFS4Neg:
		return ProtoDPMR
	default:
		return ProtoNone
	}
}

// IsVoice reports whether a sync tag is a voice (as opposed to data/
// control) sub-class, used by the dispatcher to decide whether a
// VocoderAdapter call is expected.
func (s SyncType) IsVoice() bool {
	switch s {
	case SyncDMRBSVoicePos, SyncDMRBSVoiceNeg, SyncDMRMSVoice,
		SyncX2TDMAVoicePos, SyncX2TDMAVoiceNeg,
		SyncDSTARVoicePos, SyncDSTARVoiceNeg,
		SyncProVoicePos, SyncProVoiceNeg,
		SyncEDACSPos, SyncEDACSNeg,
		SyncYSFPos, SyncYSFNeg,
		SyncM17STRPos, SyncM17STRNeg:
		return true
	case SyncP25P1Pos, SyncP25P1Neg, SyncP25P2Pos, SyncP25P2Neg:
		// Both protocols multiplex voice and control on the same sync;
		// the handler itself distinguishes by NID/DUID or MAC opcode.
		return true
	}
	return false
}

// syncPattern is one entry in the catalogue: a dibit sequence and the
// Hamming-style tolerance (max mismatched dibits) that still counts as
// a hit.
type syncPattern struct {
	tag       SyncType
	dibits    []int8
	tolerance int
}

// Canonical sync words, dibit-packed MSB-first, taken from the public
// protocol specs for each system (P25 NID status symbols, DMR BS/MS
// sync patterns, NXDN FSW, etc). Values are the widely published
// constants; polarity-inverted entries are the bitwise complement.
var catalogue = []syncPattern{
	{SyncP25P1Pos, dibitsFromU64(0x5575F5FF77FF, 24), 1},
	{SyncP25P1Neg, dibitsFromU64(0xAAA0A00A8800, 24), 1},
	{SyncP25P2Pos, dibitsFromU64(0x575D57F7FF, 20), 1},
	{SyncP25P2Neg, dibitsFromU64(0xA8A2A8080500, 24), 1},
	{SyncDMRBSVoicePos, dibitsFromU64(0x755FD7DF75F7, 24), 1},
	{SyncDMRBSVoiceNeg, dibitsFromU64(0xAAA02820AA08, 24), 1},
	{SyncDMRBSDataPos, dibitsFromU64(0xDFF57D75DF5D, 24), 1},
	{SyncDMRBSDataNeg, dibitsFromU64(0x200A82A02082, 24), 1},
	{SyncDMRMSVoice, dibitsFromU64(0x7F7D5DD57DFD, 24), 1},
	{SyncDMRMSData, dibitsFromU64(0xD5D7F77FD757, 24), 1},
	{SyncDMRRCData, dibitsFromU64(0x77D55F7DFD77, 24), 1},
	{SyncNXDNFSWPos, dibitsFromU64(0xCD, 4), 0},
	{SyncNXDNFSWNeg, dibitsFromU64(0x32, 4), 0},
	{SyncX2TDMAVoicePos, dibitsFromU64(0x5575F5FF77FF, 24), 1},
	{SyncX2TDMAVoiceNeg, dibitsFromU64(0xAAA0A00A8800, 24), 1},
	{SyncX2TDMADataPos, dibitsFromU64(0x5575F5FF5757, 24), 1},
	{SyncX2TDMADataNeg, dibitsFromU64(0xAAA0A00AA8A8, 24), 1},
	{SyncDSTARVoicePos, dibitsFromU64(0x2AAB, 8), 0},
	{SyncDSTARVoiceNeg, dibitsFromU64(0x1554, 8), 0},
	{SyncDSTARHDPos, dibitsFromU64(0x555555555555, 24), 2},
	{SyncDSTARHDNeg, dibitsFromU64(0xAAAAAAAAAAAA, 24), 2},
	{SyncProVoicePos, dibitsFromU64(0x0123456789AB, 24), 2},
	{SyncProVoiceNeg, dibitsFromU64(0xFEDCBA987654, 24), 2},
	{SyncEDACSPos, dibitsFromU64(0xCFA823B, 14), 1},
	{SyncEDACSNeg, dibitsFromU64(0x3057DC4, 14), 1},
	{SyncYSFPos, dibitsFromU64(0xD471C9634D, 20), 1},
	{SyncYSFNeg, dibitsFromU64(0x2B8E369CB2, 20), 1},
	{SyncM17LSFPos, dibitsFromU64(0x55F7, 8), 0},
	{SyncM17LSFNeg, dibitsFromU64(0xAA08, 8), 0},
	{SyncM17STRPos, dibitsFromU64(0xFF5D, 8), 0},
	{SyncM17STRNeg, dibitsFromU64(0x00A2, 8), 0},
	{SyncM17BRTPos, dibitsFromU64(0xA5B9, 8), 0},
	{SyncM17BRTNeg, dibitsFromU64(0x5A46, 8), 0},
	{SyncM17PKTPos, dibitsFromU64(0x75FF, 8), 0},
	{SyncM17PKTNeg, dibitsFromU64(0x8A00, 8), 0},
	{SyncM17PREPos, dibitsFromU64(0x0707, 8), 0},
	{SyncM17PRENeg, dibitsFromU64(0x0808, 8), 0},
	{SyncDPMRFS1Pos, dibitsFromU64(0xD75, 6), 0},
	{SyncDPMRFS1Neg, dibitsFromU64(0x28A, 6), 0},
	{SyncDPMRFS2Pos, dibitsFromU64(0xD55, 6), 0},
	{SyncDPMRFS2Neg, dibitsFromU64(0x2AA, 6), 0},
	{SyncDPMRFS3Pos, dibitsFromU64(0xDD5, 6), 0},
	{SyncDPMRFS3Neg, dibitsFromU64(0x22A, 6), 0},
	{SyncDPMRFS4Pos, dibitsFromU64(0xD5D, 6), 0},
	{SyncDPMRFS4Neg, dibitsFromU64(0x2A2, 6), 0},
}

// dibitsFromU64 unpacks the low n*2 bits of v into n dibits, MSB pair
// first.
func dibitsFromU64(v uint64, n int) []int8 {
	out := make([]int8, n)
	for i := 0; i < n; i++ {
		shift := uint((n - 1 - i) * 2)
		out[i] = int8((v >> shift) & 0x3)
	}
	return out
}

// enabledFor reports whether a catalogue entry's protocol is enabled
// in the given options.
func (p syncPattern) enabledFor(opt ProtocolEnables) bool {
	switch ProtocolOf(p.tag) {
	case ProtoP25P1:
		return opt.P25P1
	case ProtoP25P2:
		return opt.P25P2
	case ProtoDMR:
		return opt.DMR
	case ProtoNXDN:
		return opt.NXDN48 || opt.NXDN96
	case ProtoX2TDMA:
		return opt.X2TDMA
	case ProtoDSTAR:
		return opt.DSTAR
	case ProtoProVoice:
		return opt.ProVoice
	case ProtoEDACS:
		return opt.EDACS
	case ProtoYSF:
		return opt.YSF
	case ProtoM17:
		return opt.M17
	case ProtoDPMR:
		return opt.DPMR
	default:
		return false
	}
}
