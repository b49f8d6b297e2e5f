package oracle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/notargets/kernelharness/device"
	"github.com/notargets/kernelharness/template"
)

// Kernel blueprints. Each check materializes a concrete kernel by filling
// the expression hole and type tokens; the compiler only runs at first
// launch. GENERATE_TEST_HERE is the designated expression hole.

var binaryTemplate = &template.KernelTemplate{
	Name:  "oracle_binary",
	Entry: "oracleBinary",
	Source: `
@kernel void oracleBinary(const TX *X, const TY *Y, TZ *Z, const int n) {
	for (int i = 0; i < n; ++i; @tile(GROUP_SIZE, @outer, @inner)) {
		if (i < n) {
			const TX x = X[i];
			const TY y = Y[i];
			Z[i] = GENERATE_TEST_HERE;
		}
	}
}
`,
	Placeholders: []string{"TX", "TY", "TZ", "GROUP_SIZE", "GENERATE_TEST_HERE"},
}

var unaryTemplate = &template.KernelTemplate{
	Name:  "oracle_unary",
	Entry: "oracleUnary",
	Source: `
@kernel void oracleUnary(const TX *X, TZ *Z, const int n) {
	for (int i = 0; i < n; ++i; @tile(GROUP_SIZE, @outer, @inner)) {
		if (i < n) {
			const TX x = X[i];
			Z[i] = GENERATE_TEST_HERE;
		}
	}
}
`,
	Placeholders: []string{"TX", "TZ", "GROUP_SIZE", "GENERATE_TEST_HERE"},
}

var atomicTemplate = &template.KernelTemplate{
	Name:  "oracle_atomic",
	Entry: "atomicFold",
	Source: `
@kernel void atomicFold(const TX *X, TX *Z, const int n) {
	for (int i = 0; i < n; ++i; @tile(1, @outer, @inner)) {
		if (i < n) {
			const TX x = X[i];
			ATOMIC_UPDATE
		}
	}
}
`,
	Placeholders: []string{"TX", "ATOMIC_UPDATE"},
}

var indexTemplate = &template.KernelTemplate{
	Name:  "oracle_index",
	Entry: "indexExpand",
	Source: `
@kernel void indexExpand(const int *X, int *Z, const int n) {
	for (int i = 0; i < n; ++i; @tile(GROUP_SIZE, @outer, @inner)) {
		if (i < n) {
			Z[i] = X[X_OFFSET_EXPR];
		}
	}
}
`,
	Placeholders: []string{"GROUP_SIZE", "X_OFFSET_EXPR"},
}

var castTemplate = &template.KernelTemplate{
	Name:  "oracle_cast",
	Entry: "castKernel",
	Source: `
@kernel void castKernel(const TX *X, TZ *Z, const int n) {
	for (int i = 0; i < n; ++i; @tile(1, @outer, @inner)) {
		if (i < n) {
			Z[i] = CAST_EXPR;
		}
	}
}
`,
	Placeholders: []string{"TX", "TZ", "CAST_EXPR"},
}

// Config tunes a Runner. Zero values select the defaults.
type Config struct {
	Seed      uint64
	Size      int     // logical index space per elementwise case (default 128)
	GroupSize int     // worker-parallelism hint for elementwise kernels (default 128)
	NPrograms int     // independent contributions in atomic checks (default 37)
	FloatTol  float64 // floating tolerance (default 1e-2)
	Logger    zerolog.Logger
}

// Runner orchestrates one correctness check end to end: build inputs,
// compute the host reference, materialize and launch the kernel, compare.
type Runner struct {
	dev        *device.Device
	factory    *Factory
	comparator *Comparator
	engine     *template.Engine
	cfg        Config
	log        zerolog.Logger
}

// NewRunner creates a runner bound to one device.
func NewRunner(dev *device.Device, cfg Config) *Runner {
	if dev == nil {
		panic("device cannot be nil")
	}
	if cfg.Size == 0 {
		cfg.Size = 128
	}
	if cfg.GroupSize == 0 {
		cfg.GroupSize = 128
	}
	if cfg.NPrograms == 0 {
		cfg.NPrograms = 37
	}
	if cfg.FloatTol == 0 {
		cfg.FloatTol = DefaultFloatTol
	}
	return &Runner{
		dev:        dev,
		factory:    NewFactory(cfg.Seed),
		comparator: &Comparator{FloatTol: cfg.FloatTol},
		engine:     template.NewEngine(),
		cfg:        cfg,
		log:        cfg.Logger,
	}
}

// Device returns the device the runner is bound to.
func (r *Runner) Device() *device.Device { return r.dev }

// SkipReason reports whether err is a device resource-exhaustion failure
// that a harness may treat as a skipped case rather than a failure.
func SkipReason(err error) (string, bool) {
	if device.IsOutOfResources(err) {
		return err.Error(), true
	}
	return "", false
}

func (r *Runner) materialize(tpl *template.KernelTemplate, subs template.SubstitutionMap) (*device.Kernel, error) {
	inst, err := r.engine.Instantiate(tpl, subs)
	if err != nil {
		return nil, err
	}
	return device.NewKernel(r.dev, inst.Source, inst.Entry), nil
}

// CheckBinary runs one elementwise binary-operator case: kernel output
// over random inputs of the two dtypes must match the host reference
// under the output dtype's tolerance rule.
func (r *Runner) CheckBinary(dtX, dtY device.DataType, op Op) error {
	r.log.Debug().Str("op", op.String()).
		Stringer("dtype_x", dtX).Stringer("dtype_y", dtY).Msg("binary case")

	size := r.cfg.Size
	hx := r.factory.Random(device.MustShape(dtX, size))
	hy := r.factory.Random(device.MustShape(dtY, size))

	ref, err := Apply(op, hx, hy)
	if err != nil {
		return err
	}

	floatOperands := dtX.IsFloat() || dtY.IsFloat()
	kernel, err := r.materialize(binaryTemplate, template.SubstitutionMap{
		"TX":                 dtX.CName(),
		"TY":                 dtY.CName(),
		"TZ":                 ref.Dtype.CName(),
		"GROUP_SIZE":         strconv.Itoa(r.cfg.GroupSize),
		"GENERATE_TEST_HERE": op.Fragment(floatOperands),
	})
	if err != nil {
		return err
	}
	defer kernel.Free()

	x := device.NewArrayFrom(r.dev, hx)
	defer x.Free()
	y := device.NewArrayFrom(r.dev, hy)
	defer y.Free()
	z := device.NewArray(r.dev, ref.TypedShape)
	defer z.Free()

	if err := kernel.Launch(device.Grid{size}, x, y, z); err != nil {
		return err
	}
	return r.compare(ref, z.Read(), op, dtX, dtY)
}

// CheckBinaryRejected asserts that a case must fail at compile or launch
// time, e.g. a bitwise operator over floating operands. A kernel that
// runs to completion is a failure, and so is a resource-exhaustion error
// (that is a device limitation, not the rejection under test).
func (r *Runner) CheckBinaryRejected(dtX, dtY device.DataType, op Op) error {
	size := r.cfg.Size
	zType := ResultType(op, dtX, dtY)

	floatOperands := dtX.IsFloat() || dtY.IsFloat()
	kernel, err := r.materialize(binaryTemplate, template.SubstitutionMap{
		"TX":                 dtX.CName(),
		"TY":                 dtY.CName(),
		"TZ":                 zType.CName(),
		"GROUP_SIZE":         strconv.Itoa(r.cfg.GroupSize),
		"GENERATE_TEST_HERE": op.Fragment(floatOperands),
	})
	if err != nil {
		return err
	}
	defer kernel.Free()

	x, _ := r.factory.RandomArray(r.dev, device.MustShape(dtX, size))
	defer x.Free()
	y, _ := r.factory.RandomArray(r.dev, device.MustShape(dtY, size))
	defer y.Free()
	z := device.NewArray(r.dev, device.MustShape(zType, size))
	defer z.Free()

	err = kernel.Launch(device.Grid{size}, x, y, z)
	if err == nil {
		return fmt.Errorf("expected compile rejection for %s %s %s, but kernel ran",
			dtX, op, dtY)
	}
	if device.IsOutOfResources(err) {
		return fmt.Errorf("expected compile rejection for %s %s %s, got resource exhaustion: %w",
			dtX, op, dtY, err)
	}
	r.log.Debug().Str("op", op.String()).Err(err).Msg("rejected as expected")
	return nil
}

// CheckUnary runs one elementwise unary-operator case. Logarithm inputs
// are shifted strictly positive (|x| + 0.01) since the oracle is
// undefined at non-positive arguments.
func (r *Runner) CheckUnary(dtX device.DataType, op Op) error {
	r.log.Debug().Str("op", op.String()).Stringer("dtype_x", dtX).Msg("unary case")

	size := r.cfg.Size
	hx := r.factory.Random(device.MustShape(dtX, size))
	if op == Log {
		for i := 0; i < size; i++ {
			hx.SetF(i, math.Abs(hx.GetF(i))+0.01)
		}
	}

	ref, err := Apply(op, hx)
	if err != nil {
		return err
	}

	kernel, err := r.materialize(unaryTemplate, template.SubstitutionMap{
		"TX":                 dtX.CName(),
		"TZ":                 ref.Dtype.CName(),
		"GROUP_SIZE":         strconv.Itoa(r.cfg.GroupSize),
		"GENERATE_TEST_HERE": op.Fragment(dtX.IsFloat()),
	})
	if err != nil {
		return err
	}
	defer kernel.Free()

	x := device.NewArrayFrom(r.dev, hx)
	defer x.Free()
	z := device.NewArray(r.dev, ref.TypedShape)
	defer z.Free()

	if err := kernel.Launch(device.Grid{size}, x, z); err != nil {
		return err
	}
	return r.compare(ref, z.Read(), op, dtX)
}

// AtomicOp selects the reduction folded atomically into the shared cell.
type AtomicOp int

const (
	AtomicAdd AtomicOp = iota + 1
	AtomicMax
	AtomicMin
)

func (a AtomicOp) String() string {
	switch a {
	case AtomicAdd:
		return "add"
	case AtomicMax:
		return "max"
	case AtomicMin:
		return "min"
	default:
		return fmt.Sprintf("AtomicOp(%d)", int(a))
	}
}

func (a AtomicOp) update() string {
	switch a {
	case AtomicAdd:
		return "@atomic Z[0] += x;"
	case AtomicMax:
		return "@atomic Z[0] = Z[0] > x ? Z[0] : x;"
	case AtomicMin:
		return "@atomic Z[0] = Z[0] < x ? Z[0] : x;"
	default:
		panic("unknown atomic op")
	}
}

// Input perturbation modes for atomic checks, exercising sign and extreme
// placement.
const (
	ModeAllNeg = "all_neg"
	ModeAllPos = "all_pos"
	ModeMinNeg = "min_neg"
	ModeMaxPos = "max_pos"
)

// AtomicModes lists all perturbation modes.
var AtomicModes = []string{ModeAllNeg, ModeAllPos, ModeMinNeg, ModeMaxPos}

// CheckAtomic launches NPrograms independent program instances that each
// fold one input element into a single shared output cell seeded with the
// operator's neutral element. Add is compared under the floating tolerance
// (parallel order differs from the serial host fold); max and min are
// order-independent and must match exactly regardless of dtype.
func (r *Runner) CheckAtomic(op AtomicOp, dt device.DataType, mode string) error {
	return r.checkAtomicN(op, dt, mode, r.cfg.NPrograms)
}

// CheckAtomicN is CheckAtomic with an explicit contribution count, used to
// stress the floating add tolerance at larger reduction sizes.
func (r *Runner) CheckAtomicN(op AtomicOp, dt device.DataType, mode string, n int) error {
	return r.checkAtomicN(op, dt, mode, n)
}

func (r *Runner) checkAtomicN(op AtomicOp, dt device.DataType, mode string, n int) error {
	r.log.Debug().Str("op", op.String()).Stringer("dtype", dt).
		Str("mode", mode).Int("n", n).Msg("atomic case")

	hx := r.factory.Random(device.MustShape(dt, n))
	if err := applyAtomicMode(hx, mode, r.factory); err != nil {
		return err
	}

	seed := r.atomicNeutral(op, dt)

	kernel, err := r.materialize(atomicTemplate, template.SubstitutionMap{
		"TX":            dt.CName(),
		"ATOMIC_UPDATE": op.update(),
	})
	if err != nil {
		return err
	}
	defer kernel.Free()

	x := device.NewArrayFrom(r.dev, hx)
	defer x.Free()
	z := device.NewArrayFrom(r.dev, seed)
	defer z.Free()

	if err := kernel.Launch(device.Grid{n}, x, z); err != nil {
		return err
	}

	ref := r.atomicReference(op, hx, seed)
	got := z.Read()

	if op == AtomicAdd {
		if err := r.comparator.AllClose(ref, got); err != nil {
			return fmt.Errorf("atomic %s %s mode=%s: %w", op, dt, mode, err)
		}
		return nil
	}
	if err := ExactEqual(ref, got); err != nil {
		return fmt.Errorf("atomic %s %s mode=%s: %w", op, dt, mode, err)
	}
	return nil
}

// atomicNeutral builds the one-element seed tensor holding the operator's
// identity: 0 for add, the minimum representable (or -inf) for max, the
// maximum representable (or +inf) for min.
func (r *Runner) atomicNeutral(op AtomicOp, dt device.DataType) *device.Host {
	seed := device.NewHost(device.MustShape(dt, 1))
	switch op {
	case AtomicAdd:
		// zeroed allocation already holds the identity
	case AtomicMax:
		if dt.IsFloat() {
			seed.SetF(0, math.Inf(-1))
		} else {
			seed.SetI(0, dt.MinInt())
		}
	case AtomicMin:
		if dt.IsFloat() {
			seed.SetF(0, math.Inf(1))
		} else {
			seed.SetI(0, dt.MaxInt())
		}
	}
	return seed
}

// atomicReference computes the serial host fold starting from the seed.
// Max/min copy the winning element's stored bits so the result is
// byte-identical to any order-independent device fold.
func (r *Runner) atomicReference(op AtomicOp, hx, seed *device.Host) *device.Host {
	ref := seed.Clone()
	n := hx.Len()
	switch {
	case op == AtomicAdd && hx.Dtype.IsFloat():
		sum := ref.GetF(0)
		for i := 0; i < n; i++ {
			sum += hx.GetF(i)
		}
		ref.SetF(0, sum)
	case op == AtomicAdd:
		sum := ref.GetI(0)
		for i := 0; i < n; i++ {
			sum += hx.GetI(i)
		}
		ref.SetI(0, sum)
	default:
		for i := 0; i < n; i++ {
			v, best := hx.GetF(i), ref.GetF(0)
			if (op == AtomicMax && v > best) || (op == AtomicMin && v < best) {
				ref.SetRawBits(0, hx.RawBits(i))
			}
		}
	}
	return ref
}

func applyAtomicMode(hx *device.Host, mode string, f *Factory) error {
	n := hx.Len()
	maxAbs := 0.0
	for i := 0; i < n; i++ {
		if v := math.Abs(hx.GetF(i)); v > maxAbs {
			maxAbs = v
		}
	}

	switch mode {
	case ModeAllNeg:
		for i := 0; i < n; i++ {
			hx.SetF(i, -math.Abs(hx.GetF(i)))
		}
	case ModeAllPos:
		for i := 0; i < n; i++ {
			hx.SetF(i, math.Abs(hx.GetF(i)))
		}
	case ModeMinNeg:
		hx.SetF(f.rng.Intn(n), -maxAbs-1)
	case ModeMaxPos:
		hx.SetF(f.rng.Intn(n), maxAbs+1)
	default:
		return fmt.Errorf("unknown atomic mode %q", mode)
	}
	return nil
}

// CheckIndexExpand verifies that new-axis indexing matches host broadcast
// indexing. axes describes the output rank: true marks a real input axis,
// false an inserted one. The device side reads through a synthesized
// strided-offset expression with row-major strides computed right to left.
func (r *Runner) CheckIndexExpand(axes []bool) error {
	const dim = 32
	const groupSize = 32 // index category runs narrow

	xRank := 0
	for _, keep := range axes {
		if keep {
			xRank++
		}
	}
	if xRank == 0 || xRank > len(axes) {
		return fmt.Errorf("index case needs at least one real axis in %v", axes)
	}

	xShape := make([]int, xRank)
	zShape := make([]int, len(axes))
	for i := range xShape {
		xShape[i] = dim
	}
	for i := range zShape {
		zShape[i] = dim
	}

	hx := r.factory.Random(device.MustShape(device.Int32, xShape...))
	zts := device.MustShape(device.Int32, zShape...)

	// host broadcast reference
	ref := device.NewHost(zts)
	zStrides := zts.Strides()
	xStrides := hx.Strides()
	for flat := 0; flat < zts.Len(); flat++ {
		xOff, k := 0, 0
		for zi, keep := range axes {
			idx := (flat / zStrides[zi]) % zShape[zi]
			if keep {
				xOff += idx * xStrides[k]
				k++
			}
		}
		ref.SetI(flat, hx.GetI(xOff))
	}

	kernel, err := r.materialize(indexTemplate, template.SubstitutionMap{
		"GROUP_SIZE":    strconv.Itoa(groupSize),
		"X_OFFSET_EXPR": indexOffsetExpr(axes, zShape, zStrides, xStrides),
	})
	if err != nil {
		return err
	}
	defer kernel.Free()

	x := device.NewArrayFrom(r.dev, hx)
	defer x.Free()
	z := device.NewArray(r.dev, zts)
	defer z.Free()

	if err := kernel.Launch(device.Grid{zts.Len()}, x, z); err != nil {
		return err
	}
	if err := r.comparator.AllClose(ref, z.Read()); err != nil {
		return fmt.Errorf("index expand %v: %w", axes, err)
	}
	return nil
}

// indexOffsetExpr emits the input offset as a sum of per-axis terms, each
// decomposing the flat output index i by output stride and scaling by the
// corresponding input stride.
func indexOffsetExpr(axes []bool, zShape, zStrides, xStrides []int) string {
	terms := make([]string, 0, len(xStrides))
	k := 0
	for zi, keep := range axes {
		if !keep {
			continue
		}
		terms = append(terms, fmt.Sprintf("((i / %d) %% %d) * %d",
			zStrides[zi], zShape[zi], xStrides[k]))
		k++
	}
	return strings.Join(terms, " + ")
}

// CheckCast verifies dtype conversion of the scalar 43.5 (stored in the
// source dtype). With bitcast the destination must hold the identical bit
// pattern reinterpreted; without it, numeric conversion with default
// rounding (truncation toward zero for integer destinations).
func (r *Runner) CheckCast(from, to device.DataType, bitcast bool) error {
	if bitcast && from.Size() != to.Size() {
		return fmt.Errorf("bitcast requires equal widths: %s is %d bytes, %s is %d",
			from, from.Size(), to, to.Size())
	}

	hx := device.NewHost(device.MustShape(from, 1))
	hx.SetF(0, 43.5)

	castExpr := fmt.Sprintf("(%s)(X[i])", to.CName())
	if bitcast {
		castExpr = fmt.Sprintf("((const %s*)X)[i]", to.CName())
	}

	kernel, err := r.materialize(castTemplate, template.SubstitutionMap{
		"TX":        from.CName(),
		"TZ":        to.CName(),
		"CAST_EXPR": castExpr,
	})
	if err != nil {
		return err
	}
	defer kernel.Free()

	x := device.NewArrayFrom(r.dev, hx)
	defer x.Free()
	z := device.NewArray(r.dev, device.MustShape(to, 1))
	defer z.Free()

	if err := kernel.Launch(device.Grid{1}, x, z); err != nil {
		return err
	}

	ref := device.NewHost(device.MustShape(to, 1))
	switch {
	case bitcast:
		ref.SetRawBits(0, hx.RawBits(0))
	case from.IsInteger() && to.IsInteger():
		ref.SetI(0, hx.GetI(0))
	default:
		ref.SetF(0, hx.GetF(0))
	}

	got := z.Read()
	if bitcast || !to.IsFloat() {
		if err := ExactEqual(ref, got); err != nil {
			return fmt.Errorf("cast %s->%s bitcast=%v: %w", from, to, bitcast, err)
		}
		return nil
	}
	if err := r.comparator.AllClose(ref, got); err != nil {
		return fmt.Errorf("cast %s->%s bitcast=%v: %w", from, to, bitcast, err)
	}
	return nil
}

const tupleWithFnSource = `
void fnTriple(const float a, const float b,
              float *u, float *v, float *w) {
	*u = a + b;
	*v = a - b;
	*w = a * b;
}

@kernel void tupleKernel(const float *X, const float *Y,
                         float *A, float *B, float *C, const int n) {
	for (int i = 0; i < n; ++i; @tile(1, @outer, @inner)) {
		if (i < n) {
			float u, v, w;
			fnTriple(X[i], Y[i], &u, &v, &w);
			A[i] = u;
			B[i] = v;
			C[i] = w;
		}
	}
}
`

const tupleInlineSource = `
@kernel void tupleKernel(const float *X, const float *Y,
                         float *A, float *B, float *C, const int n) {
	for (int i = 0; i < n; ++i; @tile(1, @outer, @inner)) {
		if (i < n) {
			A[i] = X[i] + Y[i];
			B[i] = X[i] - Y[i];
			C[i] = X[i] * Y[i];
		}
	}
}
`

// CheckTuples proves a multi-value subroutine return is equivalent to
// inlining the same expressions: both kernel variants must agree with the
// host arithmetic componentwise for inputs 1.3 and 1.9.
func (r *Runner) CheckTuples() error {
	f32 := device.MustShape(device.Float32, 1)
	hx := device.NewHost(f32)
	hx.SetF(0, 1.3)
	hy := device.NewHost(f32)
	hy.SetF(0, 1.9)

	refs := make([]*device.Host, 3)
	var err error
	for i, op := range []Op{Add, Sub, Mul} {
		if refs[i], err = Apply(op, hx, hy); err != nil {
			return err
		}
	}

	for _, source := range []string{tupleWithFnSource, tupleInlineSource} {
		kernel := device.NewKernel(r.dev, source, "tupleKernel")

		x := device.NewArrayFrom(r.dev, hx)
		y := device.NewArrayFrom(r.dev, hy)
		outs := make([]*device.Array, 3)
		for i := range outs {
			outs[i] = device.NewArray(r.dev, f32)
		}

		err := kernel.Launch(device.Grid{1}, x, y, outs[0], outs[1], outs[2])
		if err == nil {
			for i, ref := range refs {
				if cmpErr := r.comparator.AllClose(ref, outs[i].Read()); cmpErr != nil {
					err = fmt.Errorf("tuple component %d: %w", i, cmpErr)
					break
				}
			}
		}

		x.Free()
		y.Free()
		for _, o := range outs {
			o.Free()
		}
		kernel.Free()
		if err != nil {
			return err
		}
	}
	return nil
}

// compare wraps comparator failures with the operator and dtypes of the
// failing case.
func (r *Runner) compare(ref, got *device.Host, op Op, dts ...device.DataType) error {
	err := r.comparator.AllClose(ref, got)
	if err == nil {
		return nil
	}

	var mismatch *ShapeOrTypeMismatchError
	var violation *ToleranceViolationError
	if !errors.As(err, &mismatch) && !errors.As(err, &violation) {
		return err
	}
	names := make([]string, len(dts))
	for i, dt := range dts {
		names[i] = dt.String()
	}
	return fmt.Errorf("op %s over (%s): %w", op, strings.Join(names, ", "), err)
}
