package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/olekukonko/tablewriter"
)

// Sink receives a finished sweep: the spec for presentation metadata plus
// the rectangular result table.
type Sink interface {
	Report(b *Benchmark, t *ResultTable) error
}

// FileSink persists one artifact pair per sweep — a rendered line chart
// and a delimited table — and an aggregate index document referencing
// every chart from the run.
type FileSink struct {
	dir    string
	charts []components.Charter
	plots  []string
}

// NewFileSink creates the artifact directory if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Report writes <plot>.html and <plot>.csv and queues the chart for the
// run index.
func (s *FileSink) Report(b *Benchmark, t *ResultTable) error {
	chart := buildChart(b, t)

	chartPath := filepath.Join(s.dir, b.PlotName+".html")
	f, err := os.Create(chartPath)
	if err != nil {
		return fmt.Errorf("failed to create chart artifact: %w", err)
	}
	if err := chart.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render chart %s: %w", b.PlotName, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := writeCSV(filepath.Join(s.dir, b.PlotName+".csv"), t); err != nil {
		return err
	}

	s.charts = append(s.charts, chart)
	s.plots = append(s.plots, b.PlotName)
	return nil
}

// WriteIndex emits results.html embedding every chart reported so far.
func (s *FileSink) WriteIndex() error {
	if len(s.charts) == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(s.dir, "results.html"))
	if err != nil {
		return fmt.Errorf("failed to create results index: %w", err)
	}
	defer f.Close()

	page := components.NewPage()
	page.AddCharts(s.charts...)
	return page.Render(f)
}

// Plots returns the artifact base names reported so far.
func (s *FileSink) Plots() []string {
	return append([]string(nil), s.plots...)
}

func axisType(log bool) string {
	if log {
		return "log"
	}
	return ""
}

// buildChart renders one series per line; when a line carries bounds,
// dashed companion series trace the min and max envelope.
func buildChart(b *Benchmark, t *ResultTable) *charts.Line {
	line := charts.NewLine()

	xlabel := b.XLabel
	if xlabel == "" {
		xlabel = t.XName
	}
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: b.PlotName}),
		charts.WithXAxisOpts(opts.XAxis{Name: xlabel, Type: axisType(b.XLog)}),
		charts.WithYAxisOpts(opts.YAxis{Name: b.YLabel, Type: axisType(b.YLog)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	xs := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		xs[i] = formatValue(row.X)
	}
	line.SetXAxis(xs)

	for li, name := range t.Lines {
		style := opts.LineStyle{}
		if li < len(b.Styles) {
			style.Color = b.Styles[li].Color
			style.Type = b.Styles[li].Dash
		}

		mean := make([]opts.LineData, len(t.Rows))
		var lo, hi []opts.LineData
		bounded := true
		for ri, row := range t.Rows {
			cell := row.Cells[li]
			mean[ri] = opts.LineData{Value: cell.Mean}
			if !cell.HasBounds() {
				bounded = false
				continue
			}
			lo = append(lo, opts.LineData{Value: *cell.Min})
			hi = append(hi, opts.LineData{Value: *cell.Max})
		}

		line.AddSeries(name, mean, charts.WithLineStyleOpts(style))
		if bounded {
			envelope := opts.LineStyle{Color: style.Color, Type: "dashed", Opacity: 0.3}
			line.AddSeries(name+"-min", lo, charts.WithLineStyleOpts(envelope))
			line.AddSeries(name+"-max", hi, charts.WithLineStyleOpts(envelope))
		}
	}
	return line
}

// writeCSV emits the full table: x, one mean column per line, then the
// min and max columns. Absent bounds stay empty.
func writeCSV(path string, t *ResultTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table artifact: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{t.XName}
	header = append(header, t.Lines...)
	for _, name := range t.Lines {
		header = append(header, name+"-min")
	}
	for _, name := range t.Lines {
		header = append(header, name+"-max")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range t.Rows {
		record := []string{formatValue(row.X)}
		for _, cell := range row.Cells {
			record = append(record, formatValue(cell.Mean))
		}
		for _, cell := range row.Cells {
			record = append(record, formatBound(cell.Min))
		}
		for _, cell := range row.Cells {
			record = append(record, formatBound(cell.Max))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// PrintTable emits the value-only subset (x plus each line's mean) to
// stdout.
func PrintTable(b *Benchmark, t *ResultTable) {
	FprintTable(os.Stdout, b, t)
}

// FprintTable is PrintTable to an arbitrary writer.
func FprintTable(w io.Writer, b *Benchmark, t *ResultTable) {
	if b.PlotName != "" {
		fmt.Fprintf(w, "%s:\n", b.PlotName)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(append([]string{t.XName}, t.Lines...))
	table.SetAutoFormatHeaders(false)
	for _, row := range t.Rows {
		record := []string{formatValue(row.X)}
		for _, cell := range row.Cells {
			record = append(record, formatValue(cell.Mean))
		}
		table.Append(record)
	}
	table.Render()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatBound(v *float64) string {
	if v == nil {
		return ""
	}
	return formatValue(*v)
}
