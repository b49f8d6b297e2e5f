package bench

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LineStyle carries per-line chart styling.
type LineStyle struct {
	Color string
	Dash  string // "solid", "dashed", "dotted"
}

// Benchmark declares one sweep: the x axis, the compared providers
// ("lines"), fixed extra arguments and presentation metadata. It is
// created once by the caller and consumed read-only.
type Benchmark struct {
	XNames    []string  // argument name(s) swept on the x axis
	XVals     []float64 // values taken by the x argument(s)
	LineArg   string    // argument name whose values select a line
	LineVals  []string  // provider values, one per line
	LineNames []string  // display labels, parallel to LineVals
	PlotName  string    // chart/artifact base name; empty disables plotting
	Args      map[string]interface{}
	XLabel    string
	YLabel    string
	XLog      bool
	YLog      bool
	Styles    []LineStyle
}

func (b *Benchmark) validate() error {
	if len(b.XNames) == 0 {
		return fmt.Errorf("benchmark %q: no x-axis argument names", b.PlotName)
	}
	if len(b.XVals) == 0 {
		return fmt.Errorf("benchmark %q: no x-axis values", b.PlotName)
	}
	if len(b.LineVals) == 0 {
		return fmt.Errorf("benchmark %q: no line values", b.PlotName)
	}
	if len(b.LineNames) != len(b.LineVals) {
		return fmt.Errorf("benchmark %q: %d line names for %d line values",
			b.PlotName, len(b.LineNames), len(b.LineVals))
	}
	return nil
}

// Metric is one measured cell: a mean plus optional min/max bounds. A
// bare scalar keeps nil bounds; the table still carries the columns.
type Metric struct {
	Mean float64
	Min  *float64
	Max  *float64
}

// Scalar wraps a bare measurement with empty bounds.
func Scalar(v float64) Metric { return Metric{Mean: v} }

// Triple preserves a (mean, min, max) measurement.
func Triple(mean, lo, hi float64) Metric {
	return Metric{Mean: mean, Min: &lo, Max: &hi}
}

// HasBounds reports whether both bounds are present.
func (m Metric) HasBounds() bool { return m.Min != nil && m.Max != nil }

// BenchFunc is the user-supplied benchmark body, invoked once per
// (x-value, line) cell with the spec's fixed arguments.
type BenchFunc func(x float64, line string, args map[string]interface{}) (Metric, error)

// Row holds every line's metric for one x value.
type Row struct {
	X     float64
	Cells []Metric // one per line, in LineVals order
}

// ResultTable is the rectangular accumulation of one sweep: exactly one
// row per x value and three logical columns (mean/min/max) per line. It
// is owned by a single sweep and never mutated concurrently.
type ResultTable struct {
	XName string
	Lines []string
	Rows  []Row
}

// Mark binds a benchmark body to its sweep declarations, mirroring a
// perf-report registration.
type Mark struct {
	fn         BenchFunc
	benchmarks []*Benchmark
	log        zerolog.Logger
}

// PerfReport registers fn for the given sweeps.
func PerfReport(fn BenchFunc, benchmarks ...*Benchmark) *Mark {
	return &Mark{fn: fn, benchmarks: benchmarks, log: zerolog.Nop()}
}

// WithLogger attaches a progress logger.
func (m *Mark) WithLogger(log zerolog.Logger) *Mark {
	m.log = log
	return m
}

// RunOptions controls where sweep results go. There is no interactive
// display mode: charts render as self-contained HTML under SavePath and
// are viewed in a browser.
type RunOptions struct {
	PrintData bool   // emit the value-only table to stdout
	SavePath  string // directory for chart/CSV artifacts and the run index
}

// Run executes every registered sweep in order. The first error from the
// benchmark body aborts the run: later sweeps do not execute and the run
// index is not written, but artifacts of sweeps that already completed
// remain on disk.
func (m *Mark) Run(opts RunOptions) error {
	var sink *FileSink
	if opts.SavePath != "" {
		var err error
		if sink, err = NewFileSink(opts.SavePath); err != nil {
			return err
		}
	}

	for _, b := range m.benchmarks {
		table, err := m.sweep(b)
		if err != nil {
			return err
		}
		if sink != nil && b.PlotName != "" {
			if err := sink.Report(b, table); err != nil {
				return err
			}
		}
		if opts.PrintData {
			PrintTable(b, table)
		}
	}

	if sink != nil {
		return sink.WriteIndex()
	}
	return nil
}

// Tables runs every sweep and returns the accumulated tables without
// reporting, for callers that post-process results themselves.
func (m *Mark) Tables() ([]*ResultTable, error) {
	tables := make([]*ResultTable, 0, len(m.benchmarks))
	for _, b := range m.benchmarks {
		table, err := m.sweep(b)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (m *Mark) sweep(b *Benchmark) (*ResultTable, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	table := &ResultTable{
		XName: b.XNames[0],
		Lines: append([]string(nil), b.LineNames...),
		Rows:  make([]Row, 0, len(b.XVals)),
	}

	for _, x := range b.XVals {
		row := Row{X: x, Cells: make([]Metric, 0, len(b.LineVals))}
		for li, line := range b.LineVals {
			metric, err := m.fn(x, line, b.Args)
			if err != nil {
				return nil, fmt.Errorf("benchmark %q x=%v %s=%s: %w",
					b.PlotName, x, b.LineArg, line, err)
			}
			m.log.Debug().Str("plot", b.PlotName).Float64("x", x).
				Str("line", b.LineNames[li]).Float64("mean", metric.Mean).
				Msg("benchmark cell")
			row.Cells = append(row.Cells, metric)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
