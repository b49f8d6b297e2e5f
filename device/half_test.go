package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestF16KnownValues(t *testing.T) {
	cases := []struct {
		f    float32
		bits uint16
	}{
		{0, 0x0000},
		{1, 0x3C00},
		{-2, 0xC000},
		{0.5, 0x3800},
		{43.5, 0x5170},
		{-43.5, 0xD170},
		{65504, 0x7BFF}, // largest normal half
	}
	for _, c := range cases {
		assert.Equal(t, c.bits, F16FromF32(c.f), "encode %v", c.f)
		assert.Equal(t, c.f, F16ToF32(c.bits), "decode %#04x", c.bits)
	}
}

func TestF16NegativeZero(t *testing.T) {
	bits := F16FromF32(float32(math.Copysign(0, -1)))
	assert.Equal(t, uint16(0x8000), bits)
	assert.True(t, math.Signbit(float64(F16ToF32(bits))))
}

func TestF16Specials(t *testing.T) {
	assert.Equal(t, uint16(0x7C00), F16FromF32(float32(math.Inf(1))))
	assert.Equal(t, uint16(0xFC00), F16FromF32(float32(math.Inf(-1))))
	assert.True(t, math.IsInf(float64(F16ToF32(0x7C00)), 1))
	assert.True(t, math.IsInf(float64(F16ToF32(0xFC00)), -1))

	nan := F16FromF32(float32(math.NaN()))
	assert.Equal(t, uint16(0x7E00), nan&0x7FFF)
	assert.True(t, math.IsNaN(float64(F16ToF32(nan))))

	// beyond the half range
	assert.Equal(t, uint16(0x7C00), F16FromF32(1e5))
}

func TestF16RoundToNearestEven(t *testing.T) {
	// 1 + 2^-11 sits exactly between 1.0 and the next half; the even
	// neighbor (1.0) wins.
	assert.Equal(t, uint16(0x3C00), F16FromF32(1+1.0/2048))
	// 1 + 3*2^-11 ties the other way and rounds up to the even 0x3C02.
	assert.Equal(t, uint16(0x3C02), F16FromF32(1+3.0/2048))
}

func TestF16Subnormals(t *testing.T) {
	tiny := float32(math.Ldexp(1, -24)) // smallest subnormal half
	assert.Equal(t, uint16(0x0001), F16FromF32(tiny))
	assert.Equal(t, tiny, F16ToF32(0x0001))

	// below half the smallest subnormal: flush to zero
	assert.Equal(t, uint16(0x0000), F16FromF32(float32(math.Ldexp(1, -26))))

	// largest subnormal round-trips
	big := F16ToF32(0x03FF)
	assert.Equal(t, uint16(0x03FF), F16FromF32(big))
}

func TestF16RoundTripAllFinite(t *testing.T) {
	for bits := uint16(0); bits < 0x7C00; bits++ {
		assert.Equal(t, bits, F16FromF32(F16ToF32(bits)), "bits %#04x", bits)
	}
	for bits := uint16(0x8000); bits < 0xFC00; bits++ {
		assert.Equal(t, bits, F16FromF32(F16ToF32(bits)), "bits %#04x", bits)
	}
}
