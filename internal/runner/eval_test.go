package runner_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/extmetrics/internal/compress"
	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/errorstat"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/iomod"
	"github.com/signalnine/extmetrics/internal/metrics"
	"github.com/signalnine/extmetrics/internal/options"
	"github.com/signalnine/extmetrics/internal/result"
	"github.com/signalnine/extmetrics/internal/runner"
	"github.com/signalnine/extmetrics/internal/telemetry"
)

type stdoutInvoker string

func (s stdoutInvoker) Run(context.Context, []string) *external.Outcome {
	return &external.Outcome{Stdout: []byte(s), Exited: true}
}

func writeInput(t *testing.T, name string, dt data.DType, n int) runner.Input {
	t.Helper()
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Cos(float64(i)/7) * 50
	}
	buf, err := data.FromFloat64s(dt, []uint64{uint64(n)}, values)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name+".bin")
	io := &iomod.Posix{}
	require.NoError(t, io.Write(buf, path))
	return runner.Input{Name: name, Path: path, DType: dt, Dims: []uint64{uint64(n)}, IO: io}
}

func TestRunEvalLossless(t *testing.T) {
	runDir := t.TempDir()
	meta, err := runner.RunEval(context.Background(), &runner.EvalOpts{
		Input:       writeInput(t, "wave", data.Double, 256),
		Compressor:  compress.NewZstd(),
		Metrics:     errorstat.New(),
		MetricNames: []string{"error_stat"},
		RunDir:      runDir,
	})
	require.NoError(t, err)

	assert.Equal(t, result.OutcomeOK, meta.Outcome)
	assert.Equal(t, 256*8, meta.UncompressedBytes)
	assert.Greater(t, meta.CompressionRatio, 0.0)
	assert.Equal(t, "+Inf", meta.Results["error_stat:psnr"])
	assert.Equal(t, 0.0, meta.Results["error_stat:mse"])

	stored, err := result.ReadEvalMeta(filepath.Join(result.EvalDir(runDir, "wave", meta.ID), "meta.json"))
	require.NoError(t, err)
	assert.Equal(t, meta.ID, stored.ID)
	assert.Equal(t, "double", stored.DType)
}

func TestRunEvalCompressorFailureIsRecorded(t *testing.T) {
	tel := telemetry.New()
	meta, err := runner.RunEval(context.Background(), &runner.EvalOpts{
		Input:      writeInput(t, "ints", data.Int32, 16),
		Compressor: compress.NewQuantize(),
		Metrics:    errorstat.New(),
		Telemetry:  tel,
	})
	require.NoError(t, err)
	assert.Equal(t, result.OutcomeFailed, meta.Outcome)
	assert.Contains(t, meta.Error, "unsupported element type")
}

func TestRunEvalMetricError(t *testing.T) {
	plugin, err := external.New(external.Config{
		Command: "metric",
		Invoker: stdoutInvoker("garbage\n"),
		TempDir: t.TempDir(),
	})
	require.NoError(t, err)

	meta, err := runner.RunEval(context.Background(), &runner.EvalOpts{
		Input:      writeInput(t, "wave", data.Float, 32),
		Compressor: compress.Noop{},
		Metrics:    metrics.NewComposite(plugin, errorstat.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, result.OutcomeMetricError, meta.Outcome)
	assert.Equal(t, int32(external.CodeFormatError), meta.Results[external.KeyErrorCode])
	assert.Contains(t, meta.Results, "error_stat:psnr")
}

func TestRunEvalMissingInput(t *testing.T) {
	_, err := runner.RunEval(context.Background(), &runner.EvalOpts{
		Input:      runner.Input{Name: "gone", Path: filepath.Join(t.TempDir(), "gone"), DType: data.Float, Dims: []uint64{1}, IO: &iomod.Posix{}},
		Compressor: compress.Noop{},
		Metrics:    errorstat.New(),
	})
	assert.Error(t, err)
}

func TestRunEvalWrongSize(t *testing.T) {
	in := writeInput(t, "short", data.Float, 4)
	in.Dims = []uint64{5}
	_, err := runner.RunEval(context.Background(), &runner.EvalOpts{
		Input: in, Compressor: compress.Noop{}, Metrics: errorstat.New(),
	})
	assert.Error(t, err)
}

func TestOutcomeFor(t *testing.T) {
	ok := options.New()
	ok.SetInt32(external.KeyErrorCode, external.CodeSuccess)
	bad := options.New()
	bad.SetInt32(external.KeyErrorCode, external.CodeSpawnError)

	tests := []struct {
		name    string
		results *options.Options
		err     error
		want    string
	}{
		{"success", ok, nil, result.OutcomeOK},
		{"no external metric", options.New(), nil, result.OutcomeOK},
		{"unset error code", external.UnsetResults(), nil, result.OutcomeOK},
		{"metric error", bad, nil, result.OutcomeMetricError},
		{"cycle error wins", ok, errors.New("x"), result.OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runner.OutcomeFor(tt.results, tt.err))
		})
	}
}

func TestRunBatch(t *testing.T) {
	runDir := t.TempDir()
	inputs := []runner.Input{
		writeInput(t, "a", data.Float, 64),
		writeInput(t, "b", data.Double, 128),
		writeInput(t, "c", data.Float, 32),
	}
	missing := runner.Input{Name: "missing", Path: filepath.Join(t.TempDir(), "nope"), DType: data.Float, Dims: []uint64{1}, IO: &iomod.Posix{}}
	inputs = append(inputs, missing)

	q := compress.NewQuantize()
	opts := options.New()
	opts.SetDouble(compress.KeyQuantizeAbs, 0.5)
	require.NoError(t, q.SetOptions(opts))

	metas, errs := runner.RunBatch(context.Background(), &runner.BatchOpts{
		Inputs:     inputs,
		Compressor: q,
		Metrics:    errorstat.New(),
		RunDir:     runDir,
		Parallel:   2,
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "missing")
	require.Len(t, metas, 4)
	assert.Nil(t, metas[3])
	for _, m := range metas[:3] {
		assert.Equal(t, result.OutcomeOK, m.Outcome)
		maxErr, ok := result.Number(m.Results["error_stat:max_error"])
		require.True(t, ok)
		assert.LessOrEqual(t, maxErr, 0.5+1e-4)
	}

	entries, err := os.ReadDir(filepath.Join(runDir, "evals"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
