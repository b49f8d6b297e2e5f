package bench

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundedTable() *ResultTable {
	return &ResultTable{
		XName: "size",
		Lines: []string{"fast-impl", "slow-impl"},
		Rows: []Row{
			{X: 8, Cells: []Metric{Triple(1, 0.5, 1.5), Triple(3, 2, 4)}},
			{X: 16, Cells: []Metric{Triple(2, 1, 3), Triple(6, 5, 7)}},
		},
	}
}

func scalarTable() *ResultTable {
	return &ResultTable{
		XName: "size",
		Lines: []string{"only"},
		Rows: []Row{
			{X: 8, Cells: []Metric{Scalar(1)}},
			{X: 16, Cells: []Metric{Scalar(2)}},
		},
	}
}

func TestFileSinkWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(filepath.Join(dir, "out"))
	require.NoError(t, err)

	b := sweepSpec()
	require.NoError(t, sink.Report(b, boundedTable()))
	require.NoError(t, sink.WriteIndex())

	assert.Equal(t, []string{"sweep"}, sink.Plots())
	for _, name := range []string{"sweep.html", "sweep.csv", "results.html"} {
		info, err := os.Stat(filepath.Join(dir, "out", name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestFileSinkEmptyRunWritesNoIndex(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)
	require.NoError(t, sink.WriteIndex())

	_, err = os.Stat(filepath.Join(dir, "results.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCSVBounded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, writeCSV(path, boundedTable()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"size", "fast-impl", "slow-impl",
		"fast-impl-min", "slow-impl-min",
		"fast-impl-max", "slow-impl-max",
	}, records[0])
	assert.Equal(t, []string{"8", "1", "3", "0.5", "2", "1.5", "4"}, records[1])
	assert.Equal(t, []string{"16", "2", "6", "1", "5", "3", "7"}, records[2])
}

func TestWriteCSVScalarLeavesBoundsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, writeCSV(path, scalarTable()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"size", "only", "only-min", "only-max"}, records[0])
	assert.Equal(t, []string{"8", "1", "", ""}, records[1])
}

func TestFprintTable(t *testing.T) {
	var buf bytes.Buffer
	FprintTable(&buf, sweepSpec(), boundedTable())

	out := buf.String()
	assert.Contains(t, out, "sweep:")
	assert.Contains(t, out, "fast-impl")
	assert.Contains(t, out, "slow-impl")
	assert.Contains(t, out, "16")
	// value-only subset: the bound columns stay out of the printed table
	assert.NotContains(t, out, "fast-impl-min")
}

func TestRunAbortLeavesCompletedArtifacts(t *testing.T) {
	boom := errors.New("boom")
	fn := func(x float64, line string, args map[string]interface{}) (Metric, error) {
		if args["fail"] == true {
			return Metric{}, boom
		}
		return Scalar(x), nil
	}

	failing := sweepSpec()
	failing.PlotName = "failing"
	failing.Args = map[string]interface{}{"fail": true}

	dir := t.TempDir()
	err := PerfReport(fn, sweepSpec(), failing).Run(RunOptions{SavePath: dir})
	require.ErrorIs(t, err, boom)

	// the sweep that completed before the abort keeps its artifacts
	for _, name := range []string{"sweep.html", "sweep.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	// nothing from the failed sweep, and no run index
	for _, name := range []string{"failing.html", "failing.csv", "results.html"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestRunWithSavePath(t *testing.T) {
	fn := func(x float64, line string, _ map[string]interface{}) (Metric, error) {
		return Triple(x, x-1, x+1), nil
	}

	dir := t.TempDir()
	err := PerfReport(fn, sweepSpec()).Run(RunOptions{SavePath: dir})
	require.NoError(t, err)

	for _, name := range []string{"sweep.html", "sweep.csv", "results.html"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}
