// Package device provides typed, shaped device arrays and kernel launch
// plumbing on top of gocca. It is the only package that talks to the
// external compiler/runtime; everything above it deals in DataType,
// TypedShape and Host tensors.
package device

import "fmt"

// DataType identifies the element kind of a device array or host tensor.
type DataType int

const (
	Bool DataType = iota + 1
	Int8
	Int16
	Int32
	Int64
	Float16
	Float32
	Float64
)

var dtypeNames = map[DataType]string{
	Bool:    "bool",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Float16: "float16",
	Float32: "float32",
	Float64: "float64",
}

// IntTypes lists the signed integer types in ascending width order.
var IntTypes = []DataType{Int8, Int16, Int32, Int64}

// FloatTypes lists the floating types in ascending width order.
var FloatTypes = []DataType{Float16, Float32, Float64}

func (dt DataType) String() string {
	if s, ok := dtypeNames[dt]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(dt))
}

// Size returns the element size in bytes.
func (dt DataType) Size() int64 {
	switch dt {
	case Bool, Int8:
		return 1
	case Int16, Float16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// CName returns the C source type used for this element kind in generated
// kernels. Bool is stored as char on the device; Float16 maps to the
// backend half type.
func (dt DataType) CName() string {
	switch dt {
	case Bool:
		return "char"
	case Int8:
		return "char"
	case Int16:
		return "short"
	case Int32:
		return "int"
	case Int64:
		return "long"
	case Float16:
		return "half"
	case Float32:
		return "float"
	case Float64:
		return "double"
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// IsFloat reports whether dt is a floating element kind.
func (dt DataType) IsFloat() bool {
	return dt == Float16 || dt == Float32 || dt == Float64
}

// IsInteger reports whether dt is a signed integer element kind.
func (dt DataType) IsInteger() bool {
	return dt == Int8 || dt == Int16 || dt == Int32 || dt == Int64
}

// MinInt returns the minimum representable value for an integer kind.
func (dt DataType) MinInt() int64 {
	switch dt {
	case Int8:
		return -1 << 7
	case Int16:
		return -1 << 15
	case Int32:
		return -1 << 31
	case Int64:
		return -1 << 63
	default:
		panic(fmt.Sprintf("MinInt on non-integer type %s", dt))
	}
}

// MaxInt returns the maximum representable value for an integer kind.
func (dt DataType) MaxInt() int64 {
	switch dt {
	case Int8:
		return 1<<7 - 1
	case Int16:
		return 1<<15 - 1
	case Int32:
		return 1<<31 - 1
	case Int64:
		return 1<<63 - 1
	default:
		panic(fmt.Sprintf("MaxInt on non-integer type %s", dt))
	}
}

// TypedShape describes element kind plus row-major logical extents. It is
// used for both host tensors and device arrays; comparisons between a
// candidate and a reference require equal TypedShapes before any values
// are inspected.
type TypedShape struct {
	Dtype DataType
	Shape []int
}

// NewTypedShape validates that every extent is positive.
func NewTypedShape(dtype DataType, shape ...int) (TypedShape, error) {
	for _, d := range shape {
		if d <= 0 {
			return TypedShape{}, fmt.Errorf("non-positive dimension %d in shape %v", d, shape)
		}
	}
	return TypedShape{Dtype: dtype, Shape: append([]int(nil), shape...)}, nil
}

// MustShape is NewTypedShape that panics on invalid extents; used by tests
// and internal construction where the shape is a literal.
func MustShape(dtype DataType, shape ...int) TypedShape {
	ts, err := NewTypedShape(dtype, shape...)
	if err != nil {
		panic(err)
	}
	return ts
}

// Len returns the number of logical elements.
func (ts TypedShape) Len() int {
	n := 1
	for _, d := range ts.Shape {
		n *= d
	}
	return n
}

// Bytes returns the buffer size in bytes.
func (ts TypedShape) Bytes() int64 {
	return int64(ts.Len()) * ts.Dtype.Size()
}

// Strides returns row-major element strides, computed right to left.
func (ts TypedShape) Strides() []int {
	strides := make([]int, len(ts.Shape))
	stride := 1
	for i := len(ts.Shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= ts.Shape[i]
	}
	return strides
}

// Equal reports whether dtype and every extent match.
func (ts TypedShape) Equal(other TypedShape) bool {
	if ts.Dtype != other.Dtype || len(ts.Shape) != len(other.Shape) {
		return false
	}
	for i := range ts.Shape {
		if ts.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

func (ts TypedShape) String() string {
	return fmt.Sprintf("%s%v", ts.Dtype, ts.Shape)
}
