package device

import (
	"fmt"

	"github.com/notargets/gocca"
)

// Grid is the launch grid: one positive instance count per grid
// dimension. Each extent is handed to the kernel as a trailing scalar
// argument, in order, so generated sources declare matching `const int`
// parameters last.
type Grid []int

// NewGrid validates that every extent is positive.
func NewGrid(dims ...int) (Grid, error) {
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("non-positive grid dimension %d in %v", d, dims)
		}
	}
	return Grid(dims), nil
}

// Len returns the total number of program instances.
func (g Grid) Len() int {
	n := 1
	for _, d := range g {
		n *= d
	}
	return n
}

// Kernel is a compiled device routine. Compilation is lazy: the external
// compiler is invoked at the first Launch, not at construction, so
// instantiating many kernel variants is cheap until they are exercised.
type Kernel struct {
	dev    *Device
	Entry  string
	Source string
	built  *gocca.OCCAKernel
}

// NewKernel wraps source + entry point without compiling.
func NewKernel(dev *Device, source, entry string) *Kernel {
	return &Kernel{dev: dev, Entry: entry, Source: source}
}

// Build forces compilation. Launch calls this implicitly.
func (k *Kernel) Build() error {
	if k.built != nil {
		return nil
	}
	built, err := k.dev.buildFromSource(k.Source, k.Entry)
	if err != nil {
		return err
	}
	k.built = built
	return nil
}

// Launch compiles on first use, runs the kernel with the given arguments
// followed by the grid extents, and waits for the device to drain.
// Arguments may be *Array values or plain scalars.
func (k *Kernel) Launch(grid Grid, args ...interface{}) error {
	if len(grid) == 0 {
		return fmt.Errorf("kernel %s: empty launch grid", k.Entry)
	}
	if err := k.Build(); err != nil {
		return err
	}

	runArgs := make([]interface{}, 0, len(args)+len(grid))
	for _, arg := range args {
		if arr, ok := arg.(*Array); ok {
			runArgs = append(runArgs, arr.Mem())
		} else {
			runArgs = append(runArgs, arg)
		}
	}
	for _, d := range grid {
		runArgs = append(runArgs, int32(d))
	}

	if err := k.built.RunWithArgs(runArgs...); err != nil {
		if isResourceMessage(err.Error()) {
			return &OutOfResourcesError{Entry: k.Entry, Err: err}
		}
		return fmt.Errorf("kernel %s execution failed: %w", k.Entry, err)
	}
	k.dev.Finish()
	return nil
}

// Free releases the compiled kernel, if any.
func (k *Kernel) Free() {
	if k.built != nil {
		k.built.Free()
		k.built = nil
	}
}
