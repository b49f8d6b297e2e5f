package oracle

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/notargets/kernelharness/device"
)

// Factory produces randomized typed tensors with dtype-appropriate
// distributions: booleans uniform over {0,1}, integers uniform over
// [1,32) so division and remainder never see a zero, floats N(0,10).
// The seed is explicit; two factories with the same seed produce the
// same sequence.
type Factory struct {
	rng    *rand.Rand
	normal distuv.Normal
}

// NewFactory creates a factory with an explicit seed.
func NewFactory(seed uint64) *Factory {
	src := rand.NewSource(seed)
	return &Factory{
		rng:    rand.New(src),
		normal: distuv.Normal{Mu: 0, Sigma: 10, Src: src},
	}
}

// Random produces a host tensor of the given typed shape.
func (f *Factory) Random(ts device.TypedShape) *device.Host {
	h := device.NewHost(ts)
	n := ts.Len()
	switch {
	case ts.Dtype == device.Bool:
		for i := 0; i < n; i++ {
			h.SetI(i, int64(f.rng.Intn(2)))
		}
	case ts.Dtype.IsInteger():
		for i := 0; i < n; i++ {
			h.SetI(i, 1+f.rng.Int63n(31))
		}
	default:
		for i := 0; i < n; i++ {
			h.SetF(i, f.normal.Rand())
		}
	}
	return h
}

// RandomArray produces a host tensor and its uploaded device twin.
func (f *Factory) RandomArray(dev *device.Device, ts device.TypedShape) (*device.Array, *device.Host) {
	h := f.Random(ts)
	return device.NewArrayFrom(dev, h), h
}
