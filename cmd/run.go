package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/extmetrics/internal/config"
	"github.com/signalnine/extmetrics/internal/registry"
	"github.com/signalnine/extmetrics/internal/report"
	"github.com/signalnine/extmetrics/internal/result"
	"github.com/signalnine/extmetrics/internal/runner"
	"github.com/signalnine/extmetrics/internal/telemetry"
)

var (
	flagInput    string
	flagParallel int
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate every configured input and summarize the run",
		RunE:  runBatch,
	}
	cmd.Flags().StringVar(&flagInput, "input", "", "filter to inputs by name (comma separated)")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "override max concurrent evaluations")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagParallel > 0 {
		cfg.Parallel = flagParallel
	}
	inputs := filterInputs(cfg.Inputs, flagInput)
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs match %q", flagInput)
	}

	logger, err := newLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := registry.Default()
	resolved, err := resolveInputs(reg, inputs)
	if err != nil {
		return err
	}
	invoker, err := buildInvoker(cfg.External, logger)
	if err != nil {
		return err
	}
	tel := telemetry.New()
	plugins, err := reg.NewMetrics(cfg.Metrics, registry.Deps{Formats: reg.Formats, Invoker: invoker, Logger: logger, Telemetry: tel}, cfg.MetricOptions())
	if err != nil {
		return err
	}
	comp, err := reg.NewCompressor(cfg.Compressor.Name, cfg.CompressorOptions())
	if err != nil {
		return err
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Printf("Evaluating %d input(s) with %s, metrics %s (parallel %d)...\n",
		len(resolved), comp.Name(), strings.Join(cfg.Metrics, ","), cfg.Parallel)
	metas, errs := runner.RunBatch(ctx, &runner.BatchOpts{
		Inputs:      resolved,
		Compressor:  comp,
		Metrics:     plugins,
		MetricNames: cfg.Metrics,
		RunDir:      runDir,
		Parallel:    cfg.Parallel,
		Logger:      logger,
		Telemetry:   tel,
	})
	for i, meta := range metas {
		if meta == nil {
			continue
		}
		fmt.Printf("  %s: %s (ratio %.3f, %dms)\n", resolved[i].Name, meta.Outcome, meta.CompressionRatio, meta.DurationMS)
	}
	for _, err := range errs {
		fmt.Printf("  ERROR: %v\n", err)
	}

	if cfg.Telemetry.Textfile != "" {
		if err := tel.WriteTextfile(cfg.Telemetry.Textfile); err != nil {
			logger.Warn("writing telemetry textfile", zap.String("path", cfg.Telemetry.Textfile), zap.Error(err))
		}
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, "table", os.Stdout)
}

func filterInputs(inputs []config.Input, names string) []config.Input {
	if names == "" {
		return inputs
	}
	want := map[string]bool{}
	for _, n := range strings.Split(names, ",") {
		if n = strings.TrimSpace(n); n != "" {
			want[n] = true
		}
	}
	var filtered []config.Input
	for _, in := range inputs {
		if want[in.Name] {
			filtered = append(filtered, in)
		}
	}
	return filtered
}
