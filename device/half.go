package device

import "math"

// IEEE-754 binary16 conversion. Go has no native half type, so float16
// tensors are stored as raw uint16 bit patterns and converted at the host
// boundary. Round-to-nearest-even on narrowing.

// F16FromF32 converts a float32 to its binary16 bit pattern.
func F16FromF32(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127
	mant := bits & 0x7fffff

	switch {
	case exp == 128: // inf or nan
		if mant != 0 {
			return sign | 0x7e00 // quiet nan
		}
		return sign | 0x7c00
	case exp > 15: // overflow to inf
		return sign | 0x7c00
	case exp >= -14: // normal range
		out := sign | uint16((exp+15)<<10) | uint16(mant>>13)
		// round to nearest even on the 13 dropped bits
		round := mant & 0x1fff
		if round > 0x1000 || (round == 0x1000 && out&1 == 1) {
			out++
		}
		return out
	case exp >= -24: // subnormal half
		mant |= 0x800000
		shift := uint32(-exp - 1) // 14..23 bits dropped
		out := sign | uint16(mant>>shift)
		dropped := mant & ((1 << shift) - 1)
		half := uint32(1) << (shift - 1)
		if dropped > half || (dropped == half && out&1 == 1) {
			out++
		}
		return out
	default: // underflow to zero
		return sign
	}
}

// F16ToF32 converts a binary16 bit pattern to float32.
func F16ToF32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// normalize subnormal
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case 0x1f:
		if mant == 0 {
			return math.Float32frombits(sign | 0x7f800000)
		}
		return math.Float32frombits(sign | 0x7fc00000 | mant<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
	}
}
