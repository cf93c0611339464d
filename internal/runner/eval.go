package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/extmetrics/internal/compress"
	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/iomod"
	"github.com/signalnine/extmetrics/internal/logging"
	"github.com/signalnine/extmetrics/internal/metrics"
	"github.com/signalnine/extmetrics/internal/options"
	"github.com/signalnine/extmetrics/internal/result"
	"github.com/signalnine/extmetrics/internal/telemetry"
)

// Input names a buffer on disk.
type Input struct {
	Name  string
	Path  string
	DType data.DType
	Dims  []uint64
	IO    iomod.Module
}

type EvalOpts struct {
	Input      Input
	Compressor compress.Compressor
	Metrics    metrics.Plugin
	// MetricNames is recorded in meta.json only.
	MetricNames []string
	// RunDir, when set, receives evals/<input>/<id>/meta.json.
	RunDir    string
	Logger    *zap.Logger
	Telemetry *telemetry.Metrics
}

// LoadInput reads in.Path with its io module, shaped by its type and dims.
func LoadInput(in Input) (*data.Buffer, error) {
	buf, err := in.IO.Read(in.Path, data.Zeros(in.DType, in.Dims))
	if err != nil {
		return nil, fmt.Errorf("loading input %s: %w", in.Name, err)
	}
	return buf, nil
}

// OutcomeFor classifies a finished cycle.
func OutcomeFor(results *options.Options, err error) string {
	if err != nil {
		return result.OutcomeFailed
	}
	if code, st := results.GetInt32(external.KeyErrorCode); st == options.KeySet && code != external.CodeSuccess {
		return result.OutcomeMetricError
	}
	return result.OutcomeOK
}

// RunEval drives one cycle: load, compress, decompress, evaluate. Failures
// after the input is loaded are recorded in the returned meta rather than
// returned, so a batch keeps going; the error return covers loading and
// persisting only.
func RunEval(ctx context.Context, opts *EvalOpts) (*result.EvalMeta, error) {
	log := logging.OrNop(opts.Logger).With(zap.String("input", opts.Input.Name))
	meta := result.NewEvalMeta(opts.Input.Name)
	meta.Path = opts.Input.Path
	meta.DType = opts.Input.DType.String()
	meta.Dims = opts.Input.Dims
	meta.Compressor = opts.Compressor.Name()
	meta.Metrics = opts.MetricNames
	start := time.Now()

	input, err := LoadInput(opts.Input)
	if err != nil {
		return nil, err
	}
	meta.UncompressedBytes = input.SizeInBytes()

	err = cycle(ctx, opts, input, meta)
	if err != nil {
		meta.Error = err.Error()
		log.Warn("evaluation failed", zap.Error(err))
	}
	res := opts.Metrics.Results()
	meta.Results = result.ResultsFromOptions(res)
	meta.Outcome = OutcomeFor(res, err)
	meta.DurationMS = time.Since(start).Milliseconds()
	opts.Telemetry.ObserveEvaluation(meta.Outcome, meta.CompressionRatio)
	log.Info("evaluation finished",
		zap.String("id", meta.ID),
		zap.String("outcome", meta.Outcome),
		zap.Float64("ratio", meta.CompressionRatio),
		zap.Int64("duration_ms", meta.DurationMS))

	if opts.RunDir != "" {
		if err := result.WriteEvalMeta(result.EvalDir(opts.RunDir, meta.Input, meta.ID), meta); err != nil {
			return meta, fmt.Errorf("writing meta: %w", err)
		}
	}
	return meta, nil
}

func cycle(ctx context.Context, opts *EvalOpts, input *data.Buffer, meta *result.EvalMeta) error {
	opts.Metrics.BeginCompress(input, nil)
	compressed, err := opts.Compressor.Compress(input)
	if err != nil {
		return fmt.Errorf("compressing with %s: %w", opts.Compressor.Name(), err)
	}
	meta.CompressedBytes = compressed.SizeInBytes()
	meta.CompressionRatio = compress.Ratio(input, compressed)

	output, err := opts.Compressor.Decompress(compressed, input)
	if err != nil {
		return fmt.Errorf("decompressing with %s: %w", opts.Compressor.Name(), err)
	}
	if err := opts.Metrics.EndDecompress(ctx, compressed, output, 0); err != nil {
		return fmt.Errorf("evaluating metrics: %w", err)
	}
	return nil
}

type BatchOpts struct {
	Inputs      []Input
	Compressor  compress.Compressor
	Metrics     metrics.Plugin
	MetricNames []string
	RunDir      string
	Parallel    int
	Logger      *zap.Logger
	Telemetry   *telemetry.Metrics
}

// RunBatch evaluates every input on the pool. Each job works on its own
// clones of the compressor and metrics so no state is shared between
// concurrent cycles. Metas come back in input order; entries for inputs
// that could not be loaded are nil.
func RunBatch(ctx context.Context, opts *BatchOpts) ([]*result.EvalMeta, []error) {
	metas := make([]*result.EvalMeta, len(opts.Inputs))
	jobs := make([]Job, len(opts.Inputs))
	for i, in := range opts.Inputs {
		comp := opts.Compressor.Clone()
		plugin := opts.Metrics.Clone()
		jobs[i] = func(ctx context.Context) error {
			meta, err := RunEval(ctx, &EvalOpts{
				Input:       in,
				Compressor:  comp,
				Metrics:     plugin,
				MetricNames: opts.MetricNames,
				RunDir:      opts.RunDir,
				Logger:      opts.Logger,
				Telemetry:   opts.Telemetry,
			})
			metas[i] = meta
			if err != nil {
				return fmt.Errorf("%s: %w", in.Name, err)
			}
			return nil
		}
	}
	return metas, RunPool(ctx, opts.Parallel, jobs)
}
