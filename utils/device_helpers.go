package utils

import (
	"fmt"

	"github.com/notargets/kernelharness/device"
)

// TryCreateTestDevice creates a device for testing, preferring parallel
// backends, and reports an error when no OCCA backend is usable so tests
// can skip instead of fail on machines without a runtime.
func TryCreateTestDevice() (*device.Device, error) {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}

	var lastErr error
	for _, props := range backends {
		dev, err := device.NewDevice(props)
		if err == nil {
			fmt.Printf("Created %s Device\n", dev.Mode())
			return dev, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no usable OCCA backend: %w", lastErr)
}

// CreateTestDevice is TryCreateTestDevice for callers that require a
// device to exist.
func CreateTestDevice() *device.Device {
	dev, err := TryCreateTestDevice()
	if err != nil {
		panic(err)
	}
	return dev
}
