package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/kernelharness/device"
)

func TestFactoryDeterministicBySeed(t *testing.T) {
	ts := device.MustShape(device.Float32, 64)

	a := NewFactory(42).Random(ts)
	b := NewFactory(42).Random(ts)
	assert.Equal(t, a.Data, b.Data)

	c := NewFactory(43).Random(ts)
	assert.NotEqual(t, a.Data, c.Data)
}

func TestFactoryBoolRange(t *testing.T) {
	h := NewFactory(1).Random(device.MustShape(device.Bool, 256))
	sawZero, sawOne := false, false
	for i := 0; i < h.Len(); i++ {
		v := h.GetI(i)
		assert.True(t, v == 0 || v == 1)
		sawZero = sawZero || v == 0
		sawOne = sawOne || v == 1
	}
	assert.True(t, sawZero)
	assert.True(t, sawOne)
}

func TestFactoryIntegersNeverZero(t *testing.T) {
	// integer inputs feed division and remainder, so zero is excluded
	for _, dt := range device.IntTypes {
		h := NewFactory(7).Random(device.MustShape(dt, 512))
		for i := 0; i < h.Len(); i++ {
			v := h.GetI(i)
			assert.GreaterOrEqual(t, v, int64(1), dt.String())
			assert.Less(t, v, int64(32), dt.String())
		}
	}
}

func TestFactoryFloatsSpread(t *testing.T) {
	h := NewFactory(9).Random(device.MustShape(device.Float64, 1000))
	sum, neg := 0.0, 0
	for i := 0; i < h.Len(); i++ {
		v := h.GetF(i)
		sum += v
		if v < 0 {
			neg++
		}
	}
	// N(0, 10): mean near zero, signs roughly balanced
	assert.InDelta(t, 0, sum/1000, 2)
	assert.Greater(t, neg, 300)
	assert.Less(t, neg, 700)
}
