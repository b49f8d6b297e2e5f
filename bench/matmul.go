package bench

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatmulFunc multiplies a (M×K) by b (K×N), returning an M×N product.
type MatmulFunc func(a, b *mat.Dense) (*mat.Dense, error)

// externalMatmul holds an opportunistically registered high-performance
// provider, typically bound to a vendor kernel library at startup.
var externalMatmul MatmulFunc

// RegisterMatmul installs an external matrix-multiply provider used as a
// comparison baseline in sweeps.
func RegisterMatmul(fn MatmulFunc) { externalMatmul = fn }

// HasExternalMatmul reports whether a provider is registered.
func HasExternalMatmul() bool { return externalMatmul != nil }

// Matmul multiplies through the registered provider when present, else
// with gonum on the host.
func Matmul(a, b *mat.Dense) (*mat.Dense, error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != rb {
		return nil, fmt.Errorf("matmul dimension mismatch: %dx%d by %dx%d", ra, ca, rb, cb)
	}
	if externalMatmul != nil {
		return externalMatmul(a, b)
	}
	c := mat.NewDense(ra, cb, nil)
	c.Mul(a, b)
	return c, nil
}
