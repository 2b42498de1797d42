package core

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDibitRing_BackReadWithinPrerollIsStable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewDibitRing()
		pushed := rt.IntRange(1, 1000).Draw(rt, "pushed")
		var last []int8
		for i := 0; i < pushed; i++ {
			d := int8(rt.IntRange(0, 3).Draw(rt, "dibit"))
			r.Push(d, 0)
			last = append(last, d)
		}
		maxBack := dibitRingPreroll
		if len(last) < maxBack {
			maxBack = len(last)
		}
		for back := 0; back < maxBack; back++ {
			want := last[len(last)-1-back]
			got, _ := r.Back(back)
			require.Equal(rt, want, got, "back=%d", back)
		}
	})
}

func TestDibitRing_WrapsWithoutPanicking(t *testing.T) {
	r := NewDibitRing()
	for i := 0; i < dibitRingCapacity+dibitRingPreroll+10; i++ {
		r.Push(int8(i%4), uint8(i%256))
	}
	d, rel := r.Back(0)
	require.Equal(t, int8((dibitRingCapacity+dibitRingPreroll+9)%4), d)
	_ = rel
}

func TestSoftRing_WrapsAndReadsBack(t *testing.T) {
	var s SoftRing
	for i := 0; i < softRingSize+5; i++ {
		s.Push(float64(i))
	}
	require.Equal(t, float64(softRingSize+4), s.At(0))
	require.Equal(t, float64(softRingSize+3), s.At(1))
}
