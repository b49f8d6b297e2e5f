// Package oracle checks compiled kernels against independently computed
// host references. Kernels are materialized from templates with an
// expression hole; the same expression is evaluated on the host over a
// closed operator enumeration, and the two results are compared under a
// dtype-aware tolerance policy.
package oracle

import (
	"fmt"
	"math"

	"github.com/notargets/kernelharness/device"
)

// Op enumerates the operators the oracle can exercise. Host evaluation
// dispatches over this closed set; there is no dynamic expression
// evaluation anywhere in the harness.
type Op int

const (
	Add Op = iota + 1
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
	Eq
	Ne
	Gt
	Lt
	Ge
	Le
	Neg
	BitNot
	Exp
	Log
	Sin
	Cos
)

var opNames = map[Op]string{
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Mod: "mod",
	BitAnd: "bitand", BitOr: "bitor", BitXor: "bitxor",
	Eq: "eq", Ne: "ne", Gt: "gt", Lt: "lt", Ge: "ge", Le: "le",
	Neg: "neg", BitNot: "bitnot",
	Exp: "exp", Log: "log", Sin: "sin", Cos: "cos",
}

// BinaryOps lists the arithmetic binary operators swept by the matrix
// tests.
var BinaryOps = []Op{Add, Sub, Mul, Div, Mod}

// BitwiseOps lists the bitwise binary operators.
var BitwiseOps = []Op{BitAnd, BitOr, BitXor}

// CompareOps lists the comparison operators.
var CompareOps = []Op{Eq, Ne, Gt, Lt, Ge, Le}

// MathOps lists the unary transcendental operators.
var MathOps = []Op{Exp, Log, Sin, Cos}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Arity returns 1 for unary operators, 2 for binary.
func (op Op) Arity() int {
	switch op {
	case Neg, BitNot, Exp, Log, Sin, Cos:
		return 1
	default:
		return 2
	}
}

// IsBitwise reports whether op is a bitwise operator; these are rejected
// at compile time for floating operands.
func (op Op) IsBitwise() bool {
	return op == BitAnd || op == BitOr || op == BitXor || op == BitNot
}

// IsCompare reports whether op yields a boolean result.
func (op Op) IsCompare() bool {
	switch op {
	case Eq, Ne, Gt, Lt, Ge, Le:
		return true
	}
	return false
}

// Fragment returns the C source fragment substituted into the kernel
// template's expression hole. Operands are spelled x and y. floatOperands
// selects the floating spelling where C needs one (fmod vs %).
func (op Op) Fragment(floatOperands bool) string {
	switch op {
	case Add:
		return "x + y"
	case Sub:
		return "x - y"
	case Mul:
		return "x * y"
	case Div:
		return "x / y"
	case Mod:
		if floatOperands {
			return "fmod(x, y)"
		}
		return "x % y"
	case BitAnd:
		return "x & y"
	case BitOr:
		return "x | y"
	case BitXor:
		return "x ^ y"
	case Eq:
		return "x == y"
	case Ne:
		return "x != y"
	case Gt:
		return "x > y"
	case Lt:
		return "x < y"
	case Ge:
		return "x >= y"
	case Le:
		return "x <= y"
	case Neg:
		return "-x"
	case BitNot:
		return "~x"
	case Exp:
		return "exp(x)"
	case Log:
		return "log(x)"
	case Sin:
		return "sin(x)"
	case Cos:
		return "cos(x)"
	default:
		panic(fmt.Sprintf("no fragment for %s", op))
	}
}

// ResultType computes the output element kind for an operator applied to
// the given operand kinds: comparisons yield bool, otherwise the widest
// floating operand wins over any integer, and wider beats narrower within
// a kind.
func ResultType(op Op, dts ...device.DataType) device.DataType {
	if op.IsCompare() {
		return device.Bool
	}
	var out device.DataType
	for _, dt := range dts {
		if out == 0 {
			out = dt
			continue
		}
		if dt.IsFloat() != out.IsFloat() {
			if dt.IsFloat() {
				out = dt
			}
			continue
		}
		if dt.Size() > out.Size() {
			out = dt
		}
	}
	return out
}

// Apply evaluates op over host tensors elementwise, producing the
// reference result. Integer arithmetic wraps to the result width exactly
// as a C store does; floating arithmetic is computed in float64 and
// rounded through the result precision on store.
func Apply(op Op, xs ...*device.Host) (*device.Host, error) {
	if len(xs) != op.Arity() {
		return nil, fmt.Errorf("op %s expects %d operands, got %d", op, op.Arity(), len(xs))
	}
	for _, x := range xs[1:] {
		if x.Len() != xs[0].Len() {
			return nil, fmt.Errorf("op %s: operand length mismatch", op)
		}
	}

	dts := make([]device.DataType, len(xs))
	anyFloat := false
	for i, x := range xs {
		dts[i] = x.Dtype
		if x.Dtype.IsFloat() {
			anyFloat = true
		}
	}
	if op.IsBitwise() && anyFloat {
		return nil, fmt.Errorf("op %s is undefined for floating operands", op)
	}

	outType := ResultType(op, dts...)
	out := device.NewHost(device.TypedShape{Dtype: outType, Shape: xs[0].Shape})

	n := xs[0].Len()
	for i := 0; i < n; i++ {
		switch {
		case op.IsCompare():
			var truth bool
			if anyFloat {
				truth = compareF(op, xs[0].GetF(i), xs[1].GetF(i))
			} else {
				truth = compareI(op, xs[0].GetI(i), xs[1].GetI(i))
			}
			if truth {
				out.SetI(i, 1)
			} else {
				out.SetI(i, 0)
			}

		case op.IsBitwise():
			if op == BitNot {
				out.SetI(i, ^xs[0].GetI(i))
			} else {
				out.SetI(i, bitwiseI(op, xs[0].GetI(i), xs[1].GetI(i)))
			}

		case anyFloat:
			out.SetF(i, arithF(op, collectF(xs, i)...))

		default:
			out.SetI(i, arithI(op, collectI(xs, i)...))
		}
	}
	return out, nil
}

func collectF(xs []*device.Host, i int) []float64 {
	vals := make([]float64, len(xs))
	for j, x := range xs {
		vals[j] = x.GetF(i)
	}
	return vals
}

func collectI(xs []*device.Host, i int) []int64 {
	vals := make([]int64, len(xs))
	for j, x := range xs {
		vals[j] = x.GetI(i)
	}
	return vals
}

func compareF(op Op, x, y float64) bool {
	switch op {
	case Eq:
		return x == y
	case Ne:
		return x != y
	case Gt:
		return x > y
	case Lt:
		return x < y
	case Ge:
		return x >= y
	default:
		return x <= y
	}
}

func compareI(op Op, x, y int64) bool {
	switch op {
	case Eq:
		return x == y
	case Ne:
		return x != y
	case Gt:
		return x > y
	case Lt:
		return x < y
	case Ge:
		return x >= y
	default:
		return x <= y
	}
}

func bitwiseI(op Op, x, y int64) int64 {
	switch op {
	case BitAnd:
		return x & y
	case BitOr:
		return x | y
	default:
		return x ^ y
	}
}

func arithF(op Op, vals ...float64) float64 {
	switch op {
	case Add:
		return vals[0] + vals[1]
	case Sub:
		return vals[0] - vals[1]
	case Mul:
		return vals[0] * vals[1]
	case Div:
		return vals[0] / vals[1]
	case Mod:
		return math.Mod(vals[0], vals[1])
	case Neg:
		return -vals[0]
	case Exp:
		return math.Exp(vals[0])
	case Log:
		return math.Log(vals[0])
	case Sin:
		return math.Sin(vals[0])
	case Cos:
		return math.Cos(vals[0])
	default:
		panic(fmt.Sprintf("arithF: unsupported op %s", op))
	}
}

// arithI applies integer arithmetic with C semantics: division and
// remainder truncate toward zero, which Go shares.
func arithI(op Op, vals ...int64) int64 {
	switch op {
	case Add:
		return vals[0] + vals[1]
	case Sub:
		return vals[0] - vals[1]
	case Mul:
		return vals[0] * vals[1]
	case Div:
		return vals[0] / vals[1]
	case Mod:
		return vals[0] % vals[1]
	case Neg:
		return -vals[0]
	default:
		panic(fmt.Sprintf("arithI: unsupported op %s", op))
	}
}
