package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/extmetrics/internal/config"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/options"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"external"}, cfg.Metrics)
	assert.Equal(t, "posix", cfg.External.IOFormat)
	assert.Equal(t, config.LauncherProcess, cfg.External.Launcher)
	assert.Equal(t, "zstd", cfg.Compressor.Name)
	assert.Equal(t, 1, cfg.Parallel)
	assert.Equal(t, "results", cfg.Results.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	require.Len(t, cfg.Inputs, 1)
	assert.Equal(t, "ramp", cfg.Inputs[0].Name)
	assert.Equal(t, "posix", cfg.Inputs[0].Format)
	assert.Zero(t, cfg.External.Timeout())
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"external", "error_stat"}, cfg.Metrics)
	assert.Equal(t, config.LauncherDocker, cfg.External.Launcher)
	assert.Equal(t, 2*time.Minute, cfg.External.Timeout())
	assert.Equal(t, "1", cfg.External.Env["OMP_NUM_THREADS"])
	assert.Equal(t, 4, cfg.Parallel)
	require.Len(t, cfg.Inputs, 2)
	assert.Equal(t, "pressure", cfg.Inputs[1].Name)
	assert.Equal(t, []uint64{8, 100, 500}, cfg.Inputs[1].Dims)

	mo := cfg.MetricOptions()
	cmd, _ := mo.GetString(external.KeyCommand)
	assert.Equal(t, "python3 tools/metric.py --quiet", cmd)
	strict, _ := mo.GetBool(external.KeyStrict)
	assert.True(t, strict)
	level, _ := mo.GetInt32("zstd:level")
	assert.Equal(t, int32(5), level)

	co := cfg.CompressorOptions()
	abs, st := co.GetDouble("quantize:abs")
	assert.Equal(t, options.KeySet, st)
	assert.Equal(t, 0.001, abs)
	level, _ = co.GetInt32("zstd:level")
	assert.Equal(t, int32(9), level)
}

func TestLoadTOML(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.toml")
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Compressor.Name)
	assert.True(t, cfg.External.Strict)
	assert.Equal(t, 2, cfg.Parallel)
	require.Len(t, cfg.Inputs, 1)
	assert.Equal(t, []uint64{64, 64}, cfg.Inputs[0].Dims)
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := config.Load("../../testdata/invalid.yaml")
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing command", "inputs: [{path: a, type: float, dims: [1]}]"},
		{"unknown launcher", "external: {command: m, launcher: k8s}\ninputs: [{path: a, type: float, dims: [1]}]"},
		{"docker without image", "external: {command: m, launcher: docker}\ninputs: [{path: a, type: float, dims: [1]}]"},
		{"no inputs", "external: {command: m}"},
		{"input without path", "external: {command: m}\ninputs: [{type: float, dims: [1]}]"},
		{"unknown type", "external: {command: m}\ninputs: [{path: a, type: complex, dims: [1]}]"},
		{"no dims", "external: {command: m}\ninputs: [{path: a, type: float}]"},
		{"zero dim", "external: {command: m}\ninputs: [{path: a, type: float, dims: [4, 0]}]"},
		{"negative timeout", "external: {command: m, timeout_seconds: -1}\ninputs: [{path: a, type: float, dims: [1]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestErrorStatOnlyNeedsNoCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "metrics: [error_stat]\ninputs: [{path: a, type: double, dims: [3]}]"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := config.Load(path)
	assert.NoError(t, err)
}
