package bench

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMatmulHostFallback(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	b := mat.NewDense(3, 2, []float64{7, 8, 9, 10, 11, 12})

	c, err := Matmul(a, b)
	require.NoError(t, err)

	r, cols := c.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 58.0, c.At(0, 0))
	assert.Equal(t, 64.0, c.At(0, 1))
	assert.Equal(t, 139.0, c.At(1, 0))
	assert.Equal(t, 154.0, c.At(1, 1))
}

func TestMatmulDimensionMismatch(t *testing.T) {
	a := mat.NewDense(2, 3, nil)
	b := mat.NewDense(2, 2, nil)
	_, err := Matmul(a, b)
	require.Error(t, err)
}

func TestMatmulExternalProvider(t *testing.T) {
	defer RegisterMatmul(nil)
	assert.False(t, HasExternalMatmul())

	boom := errors.New("external provider called")
	RegisterMatmul(func(a, b *mat.Dense) (*mat.Dense, error) {
		return nil, boom
	})
	assert.True(t, HasExternalMatmul())

	_, err := Matmul(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	require.ErrorIs(t, err, boom)
}
