// Package bench measures device-bound callables under reproducible
// cold-cache conditions and drives declarative comparative sweeps whose
// results land in a chart + table report.
package bench

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/notargets/kernelharness/device"
)

// DefaultCacheBytes is the size of the scratch buffer zeroed before every
// timed trial so the measured call's data is evicted from the last-level
// cache.
const DefaultCacheBytes = 256 * 1000 * 1000

const evictSource = `
@kernel void evictCache(char *buf, const int n) {
	for (int i = 0; i < n; ++i; @tile(256, @outer, @inner)) {
		if (i < n) {
			buf[i] = 0;
		}
	}
}
`

// Options tunes one measurement. Zero values select the defaults.
type Options struct {
	Warmup      time.Duration // device time to accumulate before trials (default 25ms)
	Reps        int           // timed trials (default 100)
	Percentiles []float64     // extra quantiles to return alongside the median
	Reset       func()        // runs before each trial to clear accumulated state
	CacheBytes  int64         // eviction buffer size (default DefaultCacheBytes)
}

// DefaultPercentiles brackets the median with the 20th and 80th
// percentiles.
var DefaultPercentiles = []float64{0.2, 0.8}

// Engine times callables on one device. Trials are strictly sequential:
// the cache eviction between trials requires serialization, so one Engine
// invocation owns its scratch buffer for the full measurement.
type Engine struct {
	dev        *device.Device
	evict      *device.Array
	evictK     *device.Kernel
	evictBytes int64
}

// NewEngine creates an engine bound to a device. A nil device measures
// host-only callables: no synchronization barriers and no cache eviction.
func NewEngine(dev *device.Device) *Engine {
	return &Engine{dev: dev}
}

// Free releases the eviction buffer and kernel.
func (e *Engine) Free() {
	if e.evict != nil {
		e.evict.Free()
		e.evict = nil
	}
	if e.evictK != nil {
		e.evictK.Free()
		e.evictK = nil
	}
}

func (e *Engine) finish() {
	if e.dev != nil {
		e.dev.Finish()
	}
}

func (e *Engine) ensureEviction(bytes int64) error {
	if e.dev == nil {
		return nil
	}
	if e.evict != nil && e.evictBytes == bytes {
		return nil
	}
	e.Free()
	ts, err := device.NewTypedShape(device.Int8, int(bytes))
	if err != nil {
		return err
	}
	e.evict = device.NewArray(e.dev, ts)
	e.evictK = device.NewKernel(e.dev, evictSource, "evictCache")
	e.evictBytes = bytes
	return nil
}

func (e *Engine) evictCache() error {
	if e.dev == nil {
		return nil
	}
	return e.evictK.Launch(device.Grid{int(e.evictBytes)}, e.evict)
}

// Measure times fn and returns the median trial duration plus one value
// per requested percentile. Any error from fn propagates immediately:
// a measurement of a failing callable is meaningless, so nothing is
// caught or retried.
//
// The warm-up length adapts to the callable: one untimed call flushes
// one-time compilation cost, five barrier-bracketed calls estimate a
// single-call duration, and enough further untimed calls run to
// accumulate at least opts.Warmup of device time.
func (e *Engine) Measure(fn func() error, opts Options) (time.Duration, []time.Duration, error) {
	if opts.Warmup == 0 {
		opts.Warmup = 25 * time.Millisecond
	}
	if opts.Reps == 0 {
		opts.Reps = 100
	}
	if opts.CacheBytes == 0 {
		opts.CacheBytes = DefaultCacheBytes
	}
	for _, p := range opts.Percentiles {
		if p < 0 || p > 1 {
			return 0, nil, fmt.Errorf("percentile %v outside [0,1]", p)
		}
	}
	if err := e.ensureEviction(opts.CacheBytes); err != nil {
		return 0, nil, err
	}

	// flush one-time compilation/allocation cost
	if err := fn(); err != nil {
		return 0, nil, err
	}
	e.finish()

	// estimate a single-call duration
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := fn(); err != nil {
			return 0, nil, err
		}
	}
	e.finish()
	estimate := time.Since(start) / 5

	warmupCalls := 0
	if estimate > 0 {
		warmupCalls = int(opts.Warmup / estimate)
	}
	for i := 0; i < warmupCalls; i++ {
		if err := fn(); err != nil {
			return 0, nil, err
		}
	}
	e.finish()

	times := make([]time.Duration, opts.Reps)
	for i := range times {
		if opts.Reset != nil {
			opts.Reset()
		}
		if err := e.evictCache(); err != nil {
			return 0, nil, err
		}
		e.finish()

		t0 := time.Now()
		if err := fn(); err != nil {
			return 0, nil, err
		}
		e.finish()
		times[i] = time.Since(t0)
	}

	med, qs := summarize(times, opts.Percentiles)
	return med, qs, nil
}

// summarize extracts the median and the requested quantiles from the
// per-trial samples. The sample slice is discarded afterwards.
func summarize(times []time.Duration, percentiles []float64) (time.Duration, []time.Duration) {
	secs := make([]float64, len(times))
	for i, d := range times {
		secs[i] = d.Seconds()
	}
	sort.Float64s(secs)

	med := time.Duration(stat.Quantile(0.5, stat.Empirical, secs, nil) * float64(time.Second))
	qs := make([]time.Duration, len(percentiles))
	for i, p := range percentiles {
		qs[i] = time.Duration(stat.Quantile(p, stat.Empirical, secs, nil) * float64(time.Second))
	}
	return med, qs
}
