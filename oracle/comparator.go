package oracle

import (
	"fmt"
	"math"

	"github.com/notargets/kernelharness/device"
)

// DefaultFloatTol is the max-relative-error threshold accepted for
// floating results.
const DefaultFloatTol = 1e-2

// ShapeOrTypeMismatchError reports that candidate and reference disagree
// in dtype or shape. It is raised before any values are inspected and is
// never coerced away.
type ShapeOrTypeMismatchError struct {
	Ref device.TypedShape
	Got device.TypedShape
}

func (e *ShapeOrTypeMismatchError) Error() string {
	return fmt.Sprintf("reference %s did not match candidate %s", e.Ref, e.Got)
}

// ToleranceViolationError reports values disagreeing beyond the policy
// threshold, with enough context to reproduce the failing case.
type ToleranceViolationError struct {
	Dtype  device.DataType
	RelErr float64
	Tol    float64
	Index  int // flat index of the worst element
	Ref    float64
	Got    float64
}

func (e *ToleranceViolationError) Error() string {
	return fmt.Sprintf("%s mismatch: rel err %.3e > tol %.3e at index %d (ref=%v, got=%v)",
		e.Dtype, e.RelErr, e.Tol, e.Index, e.Ref, e.Got)
}

// Comparator decides equivalence between a reference tensor and a
// candidate tensor. Booleans must agree exactly (zero XOR-sum), integers
// compare with zero tolerance, and floating kinds compare by maximum
// relative error against the pairwise maximum magnitude.
type Comparator struct {
	FloatTol float64
}

// NewComparator uses the default 1e-2 floating threshold.
func NewComparator() *Comparator {
	return &Comparator{FloatTol: DefaultFloatTol}
}

// AllClose returns nil when the candidate matches the reference under the
// dtype policy. Dtype or shape disagreement fails fast with a
// ShapeOrTypeMismatchError before values are compared.
func (c *Comparator) AllClose(ref, got *device.Host) error {
	if !ref.TypedShape.Equal(got.TypedShape) {
		return &ShapeOrTypeMismatchError{Ref: ref.TypedShape, Got: got.TypedShape}
	}

	switch {
	case ref.Dtype == device.Bool:
		return c.compareBool(ref, got)
	case ref.Dtype.IsInteger():
		return c.compareExact(ref, got)
	default:
		return c.compareFloat(ref, got)
	}
}

func (c *Comparator) compareBool(ref, got *device.Host) error {
	xorSum := 0
	first := -1
	for i := 0; i < ref.Len(); i++ {
		if (ref.Data[i] != 0) != (got.Data[i] != 0) {
			xorSum++
			if first < 0 {
				first = i
			}
		}
	}
	if xorSum != 0 {
		return &ToleranceViolationError{
			Dtype: ref.Dtype, RelErr: float64(xorSum), Tol: 0,
			Index: first, Ref: ref.GetF(first), Got: got.GetF(first),
		}
	}
	return nil
}

func (c *Comparator) compareExact(ref, got *device.Host) error {
	for i := 0; i < ref.Len(); i++ {
		if ref.GetI(i) != got.GetI(i) {
			return &ToleranceViolationError{
				Dtype: ref.Dtype, RelErr: math.Abs(ref.GetF(i) - got.GetF(i)), Tol: 0,
				Index: i, Ref: ref.GetF(i), Got: got.GetF(i),
			}
		}
	}
	return nil
}

func (c *Comparator) compareFloat(ref, got *device.Host) error {
	tol := c.FloatTol
	if tol == 0 {
		tol = DefaultFloatTol
	}

	maxMag := 0.0
	maxDiff := 0.0
	worst := 0
	for i := 0; i < ref.Len(); i++ {
		r, g := ref.GetF(i), got.GetF(i)
		// NaN never satisfies a threshold comparison and would poison the
		// max folds below, so it is an immediate violation.
		if math.IsNaN(r) || math.IsNaN(g) {
			return &ToleranceViolationError{
				Dtype: ref.Dtype, RelErr: math.NaN(), Tol: tol,
				Index: i, Ref: r, Got: g,
			}
		}
		if m := math.Max(math.Abs(r), math.Abs(g)); m > maxMag {
			maxMag = m
		}
		if d := math.Abs(r - g); d > maxDiff {
			maxDiff = d
			worst = i
		}
	}
	if maxDiff == 0 {
		return nil
	}

	relErr := math.Inf(1)
	if maxMag > 0 {
		relErr = maxDiff / maxMag
	}
	if relErr > tol {
		return &ToleranceViolationError{
			Dtype: ref.Dtype, RelErr: relErr, Tol: tol,
			Index: worst, Ref: ref.GetF(worst), Got: got.GetF(worst),
		}
	}
	return nil
}

// ExactEqual requires byte-identical element storage. Used where order
// independence makes the result exact regardless of dtype (atomic
// max/min) and for bitcast verification.
func ExactEqual(ref, got *device.Host) error {
	if !ref.TypedShape.Equal(got.TypedShape) {
		return &ShapeOrTypeMismatchError{Ref: ref.TypedShape, Got: got.TypedShape}
	}
	for i := range ref.Data {
		if ref.Data[i] != got.Data[i] {
			elem := i / int(ref.Dtype.Size())
			return &ToleranceViolationError{
				Dtype: ref.Dtype, Tol: 0, Index: elem,
				Ref: ref.GetF(elem), Got: got.GetF(elem),
			}
		}
	}
	return nil
}
