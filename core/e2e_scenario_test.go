package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEndToEnd_YSFSyncThroughDispatch drives a synthetic YSF capture
// through FrameSync and the Dispatcher together: sync detection must
// fire the OnDetect hook, and the dispatcher must book the frame into
// slot 0's event history.
func TestEndToEnd_YSFSyncThroughDispatch(t *testing.T) {
	st := NewDecoderState(Defaults())
	opt := allProtocols

	var detected SyncType
	st.Sync.OnDetect(func(tag SyncType, prevRFMod int) { detected = tag })

	payload := make([]int8, 40)
	frame := BuildTestFrame(SyncYSFPos, payload)
	tag := FeedDibits(st, opt, frame)

	require.Equal(t, SyncYSFPos, tag)
	require.Equal(t, SyncYSFPos, detected)

	d := NewDispatcher(nil)
	ok := d.Dispatch(st, nil, nil, nil, tag)
	require.True(t, ok)
	require.Equal(t, "YSF", st.History[0].Head().SysIDString)
}

// TestEndToEnd_P25P1GrantThroughTrunkingSM hands a group voice grant
// event straight to a live P25SM with a seeded IDEN table and checks the
// admission and retune path; no sync detection, dispatcher or TSBK
// parsing is involved.
func TestEndToEnd_P25P1GrantThroughTrunkingSM(t *testing.T) {
	opt := Defaults()
	opt.Protocols = allProtocols
	opt.TrunkingEnabled = true
	opt.Tune.GroupCalls = true
	st := NewDecoderState(opt)
	st.SeedIden(1, 851000000/5, 100, 0, 0, false, 1)

	hook := &fakeHook{}
	sm := NewP25SM(opt, st, hook, nil)
	sm.CCHeard(851000000, 0, 0)

	ok := sm.Grant(GrantEvent{Channel: 0x100A, Group: true, TGOrDst: 0x4567, Src: 1}, 0, 1)
	require.True(t, ok)
	require.Equal(t, StateTuned, sm.State())
	require.Equal(t, int64(851125000), hook.tunedFreq)
}
