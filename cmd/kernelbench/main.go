// kernelbench is a thin driver around the bench package: it sweeps a
// generated vector-add kernel against a host loop and writes the
// comparative report.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/notargets/kernelharness/bench"
	"github.com/notargets/kernelharness/device"
	"github.com/notargets/kernelharness/oracle"
)

const vecAddSource = `
@kernel void vecAdd(const float *X, const float *Y, float *Z, const int n) {
	for (int i = 0; i < n; ++i; @tile(128, @outer, @inner)) {
		if (i < n) {
			Z[i] = X[i] + Y[i];
		}
	}
}
`

var (
	flagSave   string
	flagPrint  bool
	flagSeed   uint64
	flagDevice string
)

func main() {
	root := &cobra.Command{
		Use:   "kernelbench",
		Short: "Benchmark generated kernels against host baselines",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the vector-add sweep",
		RunE:  runSweep,
	}
	run.Flags().StringVar(&flagSave, "save", "", "directory for chart and table artifacts")
	run.Flags().BoolVar(&flagPrint, "print", true, "print the result table")
	run.Flags().Uint64Var(&flagSeed, "seed", 0, "random seed for input data")
	run.Flags().StringVar(&flagDevice, "device", `{"mode": "Serial"}`, "OCCA device properties JSON")
	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	dev, err := device.NewDevice(flagDevice)
	if err != nil {
		return err
	}
	defer dev.Free()
	log.Info().Str("mode", dev.Mode()).Msg("device ready")

	engine := bench.NewEngine(dev)
	defer engine.Free()

	factory := oracle.NewFactory(flagSeed)
	kernel := device.NewKernel(dev, vecAddSource, "vecAdd")
	defer kernel.Free()

	fn := func(x float64, line string, _ map[string]interface{}) (bench.Metric, error) {
		n := int(x)
		hx := factory.Random(device.MustShape(device.Float32, n))
		hy := factory.Random(device.MustShape(device.Float32, n))

		var body func() error
		var cleanup func()

		switch line {
		case "kernel":
			dx := device.NewArrayFrom(dev, hx)
			dy := device.NewArrayFrom(dev, hy)
			dz := device.NewArray(dev, hx.TypedShape)
			body = func() error { return kernel.Launch(device.Grid{n}, dx, dy, dz) }
			cleanup = func() { dx.Free(); dy.Free(); dz.Free() }
		case "host":
			out := make([]float64, n)
			body = func() error {
				for i := 0; i < n; i++ {
					out[i] = hx.GetF(i) + hy.GetF(i)
				}
				return nil
			}
			cleanup = func() {}
		default:
			return bench.Metric{}, fmt.Errorf("unknown provider %q", line)
		}
		defer cleanup()

		med, qs, err := engine.Measure(body, bench.Options{
			Percentiles: bench.DefaultPercentiles,
		})
		if err != nil {
			return bench.Metric{}, err
		}
		return bench.Triple(
			med.Seconds()*1e3,
			qs[0].Seconds()*1e3,
			qs[1].Seconds()*1e3,
		), nil
	}

	mark := bench.PerfReport(fn, &bench.Benchmark{
		XNames:    []string{"size"},
		XVals:     []float64{1 << 10, 1 << 12, 1 << 14, 1 << 16, 1 << 18},
		LineArg:   "provider",
		LineVals:  []string{"kernel", "host"},
		LineNames: []string{"occa-kernel", "host-loop"},
		PlotName:  "vector-add",
		XLabel:    "elements",
		YLabel:    "ms",
		XLog:      true,
	}).WithLogger(log)

	return mark.Run(bench.RunOptions{PrintData: flagPrint, SavePath: flagSave})
}
