package device

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Host is a host-resident tensor: raw little-endian element storage plus a
// TypedShape. It is the currency between the value factory, the reference
// evaluator and the comparator; device arrays read back into a Host.
type Host struct {
	TypedShape
	Data []byte
}

// NewHost allocates a zeroed host tensor.
func NewHost(ts TypedShape) *Host {
	return &Host{TypedShape: ts, Data: make([]byte, ts.Bytes())}
}

// Clone returns an independent deep copy.
func (h *Host) Clone() *Host {
	out := NewHost(h.TypedShape)
	copy(out.Data, h.Data)
	return out
}

// GetF returns element i widened to float64. Integer and bool elements are
// converted exactly.
func (h *Host) GetF(i int) float64 {
	switch h.Dtype {
	case Bool:
		if h.Data[i] != 0 {
			return 1
		}
		return 0
	case Int8:
		return float64(int8(h.Data[i]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(h.Data[i*2:])))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(h.Data[i*4:])))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(h.Data[i*8:])))
	case Float16:
		return float64(F16ToF32(binary.LittleEndian.Uint16(h.Data[i*2:])))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(h.Data[i*4:])))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(h.Data[i*8:]))
	default:
		panic(fmt.Sprintf("GetF: unknown dtype %s", h.Dtype))
	}
}

// SetF stores v into element i, narrowing with the same semantics a C
// store would apply: floats round to the element precision, integers
// truncate toward zero then wrap to the element width.
func (h *Host) SetF(i int, v float64) {
	switch h.Dtype {
	case Float16:
		binary.LittleEndian.PutUint16(h.Data[i*2:], F16FromF32(float32(v)))
	case Float32:
		binary.LittleEndian.PutUint32(h.Data[i*4:], math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(h.Data[i*8:], math.Float64bits(v))
	case Bool:
		if v != 0 {
			h.Data[i] = 1
		} else {
			h.Data[i] = 0
		}
	default:
		h.SetI(i, int64(math.Trunc(v)))
	}
}

// GetI returns integer or bool element i as int64.
func (h *Host) GetI(i int) int64 {
	switch h.Dtype {
	case Bool:
		if h.Data[i] != 0 {
			return 1
		}
		return 0
	case Int8:
		return int64(int8(h.Data[i]))
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(h.Data[i*2:])))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(h.Data[i*4:])))
	case Int64:
		return int64(binary.LittleEndian.Uint64(h.Data[i*8:]))
	default:
		panic(fmt.Sprintf("GetI on non-integer dtype %s", h.Dtype))
	}
}

// SetI stores v into integer or bool element i, wrapping to the element
// width exactly as a C integer store does.
func (h *Host) SetI(i int, v int64) {
	switch h.Dtype {
	case Bool:
		if v != 0 {
			h.Data[i] = 1
		} else {
			h.Data[i] = 0
		}
	case Int8:
		h.Data[i] = byte(int8(v))
	case Int16:
		binary.LittleEndian.PutUint16(h.Data[i*2:], uint16(int16(v)))
	case Int32:
		binary.LittleEndian.PutUint32(h.Data[i*4:], uint32(int32(v)))
	case Int64:
		binary.LittleEndian.PutUint64(h.Data[i*8:], uint64(v))
	default:
		panic(fmt.Sprintf("SetI on non-integer dtype %s", h.Dtype))
	}
}

// RawBits returns the raw bit pattern of element i zero-extended to 64
// bits. Used by the bitcast comparison path.
func (h *Host) RawBits(i int) uint64 {
	switch h.Dtype.Size() {
	case 1:
		return uint64(h.Data[i])
	case 2:
		return uint64(binary.LittleEndian.Uint16(h.Data[i*2:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(h.Data[i*4:]))
	default:
		return binary.LittleEndian.Uint64(h.Data[i*8:])
	}
}

// SetRawBits stores a raw bit pattern into element i.
func (h *Host) SetRawBits(i int, bits uint64) {
	switch h.Dtype.Size() {
	case 1:
		h.Data[i] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(h.Data[i*2:], uint16(bits))
	case 4:
		binary.LittleEndian.PutUint32(h.Data[i*4:], uint32(bits))
	default:
		binary.LittleEndian.PutUint64(h.Data[i*8:], bits)
	}
}

// Fill sets every element to the given float value (narrowed per dtype).
func (h *Host) Fill(v float64) {
	for i := 0; i < h.Len(); i++ {
		h.SetF(i, v)
	}
}
