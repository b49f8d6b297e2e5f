package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/kernelharness/device"
)

func hostOf(dt device.DataType, vals ...float64) *device.Host {
	h := device.NewHost(device.MustShape(dt, len(vals)))
	for i, v := range vals {
		h.SetF(i, v)
	}
	return h
}

func TestResultTypePromotion(t *testing.T) {
	// comparisons always yield bool
	assert.Equal(t, device.Bool, ResultType(Eq, device.Float64, device.Int8))
	assert.Equal(t, device.Bool, ResultType(Lt, device.Int32, device.Int32))

	// float beats int regardless of width
	assert.Equal(t, device.Float16, ResultType(Add, device.Int64, device.Float16))
	assert.Equal(t, device.Float16, ResultType(Add, device.Float16, device.Int64))

	// wider beats narrower within a kind
	assert.Equal(t, device.Int64, ResultType(Mul, device.Int16, device.Int64))
	assert.Equal(t, device.Float64, ResultType(Div, device.Float64, device.Float32))

	// unary keeps the operand kind
	assert.Equal(t, device.Int8, ResultType(Neg, device.Int8))
}

func TestArity(t *testing.T) {
	for _, op := range BinaryOps {
		assert.Equal(t, 2, op.Arity(), op.String())
	}
	for _, op := range CompareOps {
		assert.Equal(t, 2, op.Arity(), op.String())
	}
	for _, op := range MathOps {
		assert.Equal(t, 1, op.Arity(), op.String())
	}
	assert.Equal(t, 1, Neg.Arity())
	assert.Equal(t, 1, BitNot.Arity())
}

func TestFragmentSpellings(t *testing.T) {
	assert.Equal(t, "x % y", Mod.Fragment(false))
	assert.Equal(t, "fmod(x, y)", Mod.Fragment(true))
	assert.Equal(t, "x + y", Add.Fragment(true))
	assert.Equal(t, "~x", BitNot.Fragment(false))
	assert.Equal(t, "exp(x)", Exp.Fragment(true))
}

func TestApplyIntegerArithmetic(t *testing.T) {
	x := hostOf(device.Int32, 7, -7, 9, 30)
	y := hostOf(device.Int32, 2, 2, 3, 4)

	div, err := Apply(Div, x, y)
	require.NoError(t, err)
	// C division truncates toward zero
	assert.Equal(t, int64(3), div.GetI(0))
	assert.Equal(t, int64(-3), div.GetI(1))

	mod, err := Apply(Mod, x, y)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mod.GetI(0))
	assert.Equal(t, int64(-1), mod.GetI(1))
	assert.Equal(t, int64(2), mod.GetI(3))
}

func TestApplyIntegerWrapsAtResultWidth(t *testing.T) {
	x := hostOf(device.Int8, 100, -100)
	y := hostOf(device.Int8, 100, 100)

	sum, err := Apply(Add, x, y)
	require.NoError(t, err)
	assert.Equal(t, device.Int8, sum.Dtype)
	assert.Equal(t, int64(-56), sum.GetI(0)) // 200 wrapped to int8
	assert.Equal(t, int64(0), sum.GetI(1))
}

func TestApplyMixedWidthPromotes(t *testing.T) {
	x := hostOf(device.Int8, 100)
	y := hostOf(device.Int32, 100)

	sum, err := Apply(Add, x, y)
	require.NoError(t, err)
	assert.Equal(t, device.Int32, sum.Dtype)
	assert.Equal(t, int64(200), sum.GetI(0))
}

func TestApplyFloatRoundsThroughResultPrecision(t *testing.T) {
	x := hostOf(device.Float32, 1.5, 10)
	y := hostOf(device.Int32, 2, 3)

	out, err := Apply(Div, x, y)
	require.NoError(t, err)
	assert.Equal(t, device.Float32, out.Dtype)
	assert.Equal(t, 0.75, out.GetF(0))
	assert.Equal(t, float64(float32(10.0/3.0)), out.GetF(1))
}

func TestApplyCompareYieldsBool(t *testing.T) {
	x := hostOf(device.Float64, 1, 2, 3)
	y := hostOf(device.Float64, 2, 2, 2)

	lt, err := Apply(Lt, x, y)
	require.NoError(t, err)
	assert.Equal(t, device.Bool, lt.Dtype)
	assert.Equal(t, int64(1), lt.GetI(0))
	assert.Equal(t, int64(0), lt.GetI(1))
	assert.Equal(t, int64(0), lt.GetI(2))

	ge, err := Apply(Ge, x, y)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ge.GetI(0))
	assert.Equal(t, int64(1), ge.GetI(1))
	assert.Equal(t, int64(1), ge.GetI(2))
}

func TestApplyBitwise(t *testing.T) {
	x := hostOf(device.Int32, 12, 12, 12)
	y := hostOf(device.Int32, 10, 10, 10)

	and, err := Apply(BitAnd, x, y)
	require.NoError(t, err)
	assert.Equal(t, int64(8), and.GetI(0))

	or, err := Apply(BitOr, x, y)
	require.NoError(t, err)
	assert.Equal(t, int64(14), or.GetI(0))

	xor, err := Apply(BitXor, x, y)
	require.NoError(t, err)
	assert.Equal(t, int64(6), xor.GetI(0))

	not, err := Apply(BitNot, x)
	require.NoError(t, err)
	assert.Equal(t, int64(-13), not.GetI(0))
}

func TestApplyBitwiseRejectsFloats(t *testing.T) {
	x := hostOf(device.Float32, 1)
	y := hostOf(device.Int32, 1)

	for _, op := range BitwiseOps {
		_, err := Apply(op, x, y)
		require.Error(t, err, op.String())
		_, err = Apply(op, y, x)
		require.Error(t, err, op.String())
	}
	_, err := Apply(BitNot, x)
	require.Error(t, err)
}

func TestApplyUnary(t *testing.T) {
	neg, err := Apply(Neg, hostOf(device.Int32, 5, -3))
	require.NoError(t, err)
	assert.Equal(t, int64(-5), neg.GetI(0))
	assert.Equal(t, int64(3), neg.GetI(1))

	exp, err := Apply(Exp, hostOf(device.Float64, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, exp.GetF(0))
	assert.InDelta(t, 2.718281828, exp.GetF(1), 1e-8)
}

func TestApplyArityMismatch(t *testing.T) {
	x := hostOf(device.Int32, 1)
	_, err := Apply(Add, x)
	require.Error(t, err)
	_, err = Apply(Neg, x, x)
	require.Error(t, err)
}

func TestApplyLengthMismatch(t *testing.T) {
	_, err := Apply(Add, hostOf(device.Int32, 1, 2), hostOf(device.Int32, 1))
	require.Error(t, err)
}
