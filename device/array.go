package device

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// Array is a typed, shaped device buffer. Layout is dense row-major; the
// logical shape lives on the host, the device sees flat storage.
type Array struct {
	TypedShape
	dev *Device
	mem *gocca.OCCAMemory
}

// NewArray allocates an uninitialized device array.
func NewArray(dev *Device, ts TypedShape) *Array {
	mem := dev.occa.Malloc(ts.Bytes(), nil, nil)
	return &Array{TypedShape: ts, dev: dev, mem: mem}
}

// NewArrayFrom allocates a device array and uploads the host tensor into
// it. The shapes must agree.
func NewArrayFrom(dev *Device, h *Host) *Array {
	mem := dev.occa.Malloc(h.Bytes(), unsafe.Pointer(&h.Data[0]), nil)
	return &Array{TypedShape: h.TypedShape, dev: dev, mem: mem}
}

// Write uploads a host tensor into the array.
func (a *Array) Write(h *Host) error {
	if !a.TypedShape.Equal(h.TypedShape) {
		return fmt.Errorf("write shape mismatch: array %s, host %s", a.TypedShape, h.TypedShape)
	}
	a.mem.CopyFrom(unsafe.Pointer(&h.Data[0]), a.Bytes())
	return nil
}

// Read copies the array back into a fresh host tensor.
func (a *Array) Read() *Host {
	h := NewHost(a.TypedShape)
	a.mem.CopyTo(unsafe.Pointer(&h.Data[0]), a.Bytes())
	return h
}

// Fill sets every element to the given value via a host staging buffer.
func (a *Array) Fill(v float64) {
	h := NewHost(a.TypedShape)
	h.Fill(v)
	a.mem.CopyFrom(unsafe.Pointer(&h.Data[0]), a.Bytes())
}

// Mem returns the underlying OCCA memory, used when assembling kernel
// argument lists.
func (a *Array) Mem() *gocca.OCCAMemory { return a.mem }

// Free releases the device buffer.
func (a *Array) Free() {
	if a.mem != nil {
		a.mem.Free()
		a.mem = nil
	}
}
