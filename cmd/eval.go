package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalnine/extmetrics/internal/config"
	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/registry"
	"github.com/signalnine/extmetrics/internal/result"
	"github.com/signalnine/extmetrics/internal/runner"
	"github.com/signalnine/extmetrics/internal/telemetry"
)

type evalFlags struct {
	input       string
	inputFormat string
	dtype       string
	dims        []uint
	metrics     []string
	command     string
	ioFormat    string
	strict      bool
	tmpDir      string
	timeout     int
	launcher    string
	image       string
	compressor  string
	zstdLevel   int
	quantizeAbs float64
	format      string
}

func newEvalCmd() *cobra.Command {
	f := &evalFlags{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Compress one buffer and evaluate the selected metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.input, "input", "", "raw input file")
	cmd.Flags().StringVar(&f.inputFormat, "input-format", "posix", "io format of the input file")
	cmd.Flags().StringVar(&f.dtype, "type", "", "element type (int8..uint64, float, double, byte)")
	cmd.Flags().UintSliceVar(&f.dims, "dim", nil, "dimension size, outermost first; repeat per dimension")
	cmd.Flags().StringSliceVar(&f.metrics, "metric", []string{"external"}, "metrics to evaluate")
	cmd.Flags().StringVar(&f.command, "command", "", "external metrics command")
	cmd.Flags().StringVar(&f.ioFormat, "io-format", "posix", "exchange file format for the external metric")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "keep return code and stderr when the metric output is malformed")
	cmd.Flags().StringVar(&f.tmpDir, "tmp-dir", "", "directory for exchange files")
	cmd.Flags().IntVar(&f.timeout, "timeout", 0, "kill the external metric after this many seconds (0 waits forever)")
	cmd.Flags().StringVar(&f.launcher, "launcher", config.LauncherProcess, "how to run the external metric (process, docker)")
	cmd.Flags().StringVar(&f.image, "image", "", "container image for the docker launcher")
	cmd.Flags().StringVar(&f.compressor, "compressor", "zstd", "compressor (noop, zstd, quantize)")
	cmd.Flags().IntVar(&f.zstdLevel, "zstd-level", 0, "zstd level for the compressor")
	cmd.Flags().Float64Var(&f.quantizeAbs, "quantize-abs", 0, "absolute error bound for quantize")
	cmd.Flags().StringVar(&f.format, "format", "table", "output format (table, json)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("dim")
	return cmd
}

// toConfig maps the flags onto a config so eval and run share validation.
func (f *evalFlags) toConfig() *config.Config {
	dims := make([]uint64, len(f.dims))
	for i, d := range f.dims {
		dims[i] = uint64(d)
	}
	return &config.Config{
		Metrics: f.metrics,
		External: config.External{
			Command:        f.command,
			IOFormat:       f.ioFormat,
			Strict:         f.strict,
			TmpDir:         f.tmpDir,
			TimeoutSeconds: f.timeout,
			Launcher:       f.launcher,
			Image:          f.image,
		},
		Compressor: config.Compressor{Name: f.compressor, ZstdLevel: f.zstdLevel, QuantizeAbs: f.quantizeAbs},
		Inputs:     []config.Input{{Path: f.input, Type: f.dtype, Dims: dims, Format: f.inputFormat}},
	}
}

func runEval(ctx context.Context, f *evalFlags, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg := f.toConfig()
	if err := config.Validate(cfg); err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := registry.Default()
	inputs, err := resolveInputs(reg, cfg.Inputs)
	if err != nil {
		return err
	}
	invoker, err := buildInvoker(cfg.External, logger)
	if err != nil {
		return err
	}
	plugins, err := reg.NewMetrics(cfg.Metrics, registry.Deps{Formats: reg.Formats, Invoker: invoker, Logger: logger, Telemetry: telemetry.New()}, cfg.MetricOptions())
	if err != nil {
		return err
	}
	comp, err := reg.NewCompressor(cfg.Compressor.Name, cfg.CompressorOptions())
	if err != nil {
		return err
	}

	meta, err := runner.RunEval(ctx, &runner.EvalOpts{
		Input:       inputs[0],
		Compressor:  comp,
		Metrics:     plugins,
		MetricNames: cfg.Metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if f.format == "json" {
		return writeMetaJSON(meta, w)
	}
	return writeMetaTable(meta, w)
}

func resolveInputs(reg *registry.Registry, ins []config.Input) ([]runner.Input, error) {
	out := make([]runner.Input, 0, len(ins))
	for _, in := range ins {
		dt, err := data.ParseDType(in.Type)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		mod, err := reg.Formats.New(in.Format)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		out = append(out, runner.Input{Name: in.Name, Path: in.Path, DType: dt, Dims: in.Dims, IO: mod})
	}
	return out, nil
}

func writeMetaJSON(meta *result.EvalMeta, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeMetaTable(meta *result.EvalMeta, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "input\t%s\n", meta.Input)
	fmt.Fprintf(tw, "compressor\t%s\n", meta.Compressor)
	fmt.Fprintf(tw, "ratio\t%.3f\n", meta.CompressionRatio)
	fmt.Fprintf(tw, "outcome\t%s\n", meta.Outcome)
	if meta.Error != "" {
		fmt.Fprintf(tw, "error\t%s\n", meta.Error)
	}
	fmt.Fprintln(tw, strings.Repeat("-", 40))
	for _, key := range sortedKeys(meta.Results) {
		v := meta.Results[key]
		if s, ok := v.(string); ok {
			v = strings.TrimRight(s, "\n")
		}
		fmt.Fprintf(tw, "%s\t%v\n", key, v)
	}
	return tw.Flush()
}
