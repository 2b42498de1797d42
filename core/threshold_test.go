package core

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestThresholdTracker_OrderingInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tr := NewThresholdTracker()
		n := rt.IntRange(0, 512).Draw(rt, "n")
		for i := 0; i < n; i++ {
			sample := rt.Float64Range(-20000, 20000).Draw(rt, "sample")
			tr.Update(sample)
		}
		require.True(rt, tr.Valid(), "min=%v lmid=%v center=%v umid=%v max=%v",
			tr.Min, tr.LowerMid, tr.Center, tr.UpperMid, tr.Max)
	})
}

func TestThresholdTracker_ResetRestoresDefaults(t *testing.T) {
	tr := NewThresholdTracker()
	for i := 0; i < 300; i++ {
		tr.Update(float64(i) * 37)
	}
	tr.reset()
	require.Equal(t, -15000.0, tr.Min)
	require.Equal(t, 15000.0, tr.Max)
	require.True(t, tr.Valid())
}

func TestThresholdTracker_StaticModeFreezesLevels(t *testing.T) {
	tr := NewThresholdTracker()
	for i := 0; i < 128; i++ {
		tr.Update(float64(i))
	}
	tr.SetStaticMode(true)
	before := tr.Min
	for i := 0; i < 256; i++ {
		tr.Update(float64(i) * 1000)
	}
	require.Equal(t, before, tr.Min, "static mode must suspend continuous recomputation")
}
