package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/gocca"
)

// Device wraps an OCCA device with the small surface the harness needs:
// build a kernel from source, allocate memory, drain outstanding work.
type Device struct {
	occa *gocca.OCCADevice
}

// NewDevice creates a device from an OCCA properties JSON string, e.g.
// `{"mode": "OpenMP"}`.
func NewDevice(props string) (*Device, error) {
	dev, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	return &Device{occa: dev}, nil
}

// Wrap adopts an already-created OCCA device.
func Wrap(dev *gocca.OCCADevice) *Device {
	if dev == nil {
		panic("device cannot be nil")
	}
	return &Device{occa: dev}
}

// Mode returns the OCCA backend name (Serial, OpenMP, CUDA, ...).
func (d *Device) Mode() string { return d.occa.Mode() }

// Finish blocks until all queued device work has drained.
func (d *Device) Finish() { d.occa.Finish() }

// Free releases the underlying device.
func (d *Device) Free() { d.occa.Free() }

// OCCA exposes the wrapped device for callers that need the raw handle.
func (d *Device) OCCA() *gocca.OCCADevice { return d.occa }

// buildFromSource compiles a kernel. OpenMP needs an explicit -O3 because
// OCCA does not apply its default flags on that backend.
func (d *Device) buildFromSource(source, entry string) (*gocca.OCCAKernel, error) {
	var kernel *gocca.OCCAKernel
	var err error

	if d.occa.Mode() == "OpenMP" {
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = d.occa.BuildKernelFromString(source, entry, props)
	} else {
		kernel, err = d.occa.BuildKernelFromString(source, entry, nil)
	}
	if err != nil {
		if isResourceMessage(err.Error()) {
			return nil, &OutOfResourcesError{Entry: entry, Err: err}
		}
		return nil, fmt.Errorf("failed to build kernel %s: %w", entry, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", entry)
	}
	return kernel, nil
}

// OutOfResourcesError marks a compile or launch failure caused by the
// kernel exceeding device limits (registers, shared memory, work-group
// size). Harnesses may treat it as a skip rather than a failure.
type OutOfResourcesError struct {
	Entry string
	Err   error
}

func (e *OutOfResourcesError) Error() string {
	return fmt.Sprintf("kernel %s exceeds device resources: %v", e.Entry, e.Err)
}

func (e *OutOfResourcesError) Unwrap() error { return e.Err }

// IsOutOfResources reports whether err is a device resource-exhaustion
// failure anywhere in its chain.
func IsOutOfResources(err error) bool {
	var oor *OutOfResourcesError
	return errors.As(err, &oor)
}

var resourceMarkers = []string{
	"out of resources",
	"too many resources",
	"CL_OUT_OF_RESOURCES",
	"CUDA_ERROR_OUT_OF_MEMORY",
	"shared memory",
	"exceeds the maximum",
}

func isResourceMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range resourceMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
