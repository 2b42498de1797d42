package core

import (
	"fmt"
	"sort"
	"strings"
)

/*
 * P25 patch/regroup tracking: super-group membership, crypto context,
 * and the compact trace-line rendering used to summarize active
 * patches and simulselects.
 */

const patchTTLSeconds = 600.0

// CryptoContext is the optional crypto triple attached to a patch.
type CryptoContext struct {
	KeyID   int
	AlgID   int
	SuiteID int
}

// PatchRecord tracks one super-group's regroup/simulselect membership.
type PatchRecord struct {
	SGID        int
	IsPatch     bool // true = patch, false = simulselect
	Active      bool
	LastUpdateM float64 // monotonic seconds

	WGIDs []int
	WUIDs []int

	Crypto *CryptoContext
}

// PatchUpdate creates or refreshes the record for sgid, stamping
// LastUpdateM and marking it active.
func (s *DecoderState) PatchUpdate(sgid int, isPatch bool, nowM float64) *PatchRecord {
	p, ok := s.Patches[sgid]
	if !ok {
		p = &PatchRecord{SGID: sgid}
		s.Patches[sgid] = p
	}
	p.IsPatch = isPatch
	p.Active = true
	p.LastUpdateM = nowM
	return p
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// PatchAddWGID adds a working-group id to sgid's membership, if not
// already present.
func (s *DecoderState) PatchAddWGID(sgid, wgid int) {
	p, ok := s.Patches[sgid]
	if !ok {
		return
	}
	if !containsInt(p.WGIDs, wgid) {
		p.WGIDs = append(p.WGIDs, wgid)
	}
}

// PatchAddWUID adds a working-unit id to sgid's membership.
func (s *DecoderState) PatchAddWUID(sgid, wuid int) {
	p, ok := s.Patches[sgid]
	if !ok {
		return
	}
	if !containsInt(p.WUIDs, wuid) {
		p.WUIDs = append(p.WUIDs, wuid)
	}
}

// PatchRemoveWGID drops a working-group id; the record is deactivated
// once membership is fully drained.
func (s *DecoderState) PatchRemoveWGID(sgid, wgid int) {
	p, ok := s.Patches[sgid]
	if !ok {
		return
	}
	for i, x := range p.WGIDs {
		if x == wgid {
			p.WGIDs = append(p.WGIDs[:i], p.WGIDs[i+1:]...)
			break
		}
	}
	s.deactivateIfDrained(p)
}

// PatchRemoveWUID drops a working-unit id from sgid's membership.
func (s *DecoderState) PatchRemoveWUID(sgid, wuid int) {
	p, ok := s.Patches[sgid]
	if !ok {
		return
	}
	for i, x := range p.WUIDs {
		if x == wuid {
			p.WUIDs = append(p.WUIDs[:i], p.WUIDs[i+1:]...)
			break
		}
	}
	s.deactivateIfDrained(p)
}

func (s *DecoderState) deactivateIfDrained(p *PatchRecord) {
	if len(p.WGIDs) == 0 && len(p.WUIDs) == 0 {
		p.Active = false
	}
}

// PatchSetKAS attaches a key id / algorithm id / suite id crypto
// context to sgid.
func (s *DecoderState) PatchSetKAS(sgid, keyID, algID, suiteID int) {
	p, ok := s.Patches[sgid]
	if !ok {
		return
	}
	p.Crypto = &CryptoContext{KeyID: keyID, AlgID: algID, SuiteID: suiteID}
}

// PatchClearSG explicitly deactivates and drains sgid's membership.
func (s *DecoderState) PatchClearSG(sgid int) {
	p, ok := s.Patches[sgid]
	if !ok {
		return
	}
	p.Active = false
	p.WGIDs = nil
	p.WUIDs = nil
	p.Crypto = nil
}

// sweepStale deactivates (but does not delete) any record whose
// LastUpdateM is older than patchTTLSeconds relative to nowM.
func (s *DecoderState) sweepStale(nowM float64) {
	for _, p := range s.Patches {
		if nowM-p.LastUpdateM > patchTTLSeconds {
			p.Active = false
		}
	}
}

func activeSortedSGIDs(patches map[int]*PatchRecord) []int {
	ids := make([]int, 0, len(patches))
	for sgid, p := range patches {
		if p.Active {
			ids = append(ids, sgid)
		}
	}
	sort.Ints(ids)
	return ids
}

// PatchComposeSummary returns "P: <sg>,<sg>,..." over every active,
// non-stale record, sweeping the TTL first.
func (s *DecoderState) PatchComposeSummary(nowM float64) string {
	s.sweepStale(nowM)
	ids := activeSortedSGIDs(s.Patches)
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = fmt.Sprintf("%03d", id)
	}
	return "P: " + strings.Join(strs, ",")
}

// compactWGList renders "WG:<n>(<first>,<second>+" (no closing
// parenthesis) when more than 3 WGIDs are present, else
// "WG:<n>(<list>)" with the plain comma-joined list. WGIDs print as
// zero-padded decimal (e.g. 0x345 -> "0837").
func compactWGList(wgids []int) string {
	if len(wgids) > 3 {
		return fmt.Sprintf("WG:%d(%04d,%04d+", len(wgids), wgids[0], wgids[1])
	}
	strs := make([]string, len(wgids))
	for i, w := range wgids {
		strs[i] = fmt.Sprintf("%04d", w)
	}
	return "WG:" + fmt.Sprintf("%d", len(wgids)) + "(" + strings.Join(strs, ",") + ")"
}

// PatchComposeDetails returns the per-record detail line: a
// "SG<sg>[P|S]" tag, the compact WG list, unit count, and crypto
// triple, sweeping the TTL first.
func (s *DecoderState) PatchComposeDetails(nowM float64) []string {
	s.sweepStale(nowM)
	ids := activeSortedSGIDs(s.Patches)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		p := s.Patches[id]
		kind := "S"
		if p.IsPatch {
			kind = "P"
		}
		parts := []string{fmt.Sprintf("SG%03d[%s]", p.SGID, kind)}
		if len(p.WGIDs) > 0 {
			parts = append(parts, compactWGList(p.WGIDs))
		}
		if len(p.WUIDs) > 0 {
			parts = append(parts, fmt.Sprintf("U:%d", len(p.WUIDs)))
		}
		if p.Crypto != nil {
			parts = append(parts, fmt.Sprintf("K:%X A:%X S:%d", p.Crypto.KeyID, p.Crypto.AlgID, p.Crypto.SuiteID))
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}
