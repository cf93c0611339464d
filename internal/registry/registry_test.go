package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/options"
	"github.com/signalnine/extmetrics/internal/registry"
)

func TestDefaultNames(t *testing.T) {
	r := registry.Default()
	assert.Equal(t, []string{"error_stat", "external"}, r.MetricNames())
	assert.Equal(t, []string{"posix", "zstd"}, r.Formats.Names())
	assert.Equal(t, []string{"noop", "quantize", "zstd"}, r.Compressors.Names())
}

func TestNewMetricsAppliesOptions(t *testing.T) {
	r := registry.Default()
	opts := options.New()
	opts.SetString(external.KeyCommand, "my-metric --fast")
	opts.SetString(external.KeyIOFormat, "zstd")

	comp, err := r.NewMetrics([]string{"external", "error_stat"}, registry.Deps{}, opts)
	require.NoError(t, err)
	require.Len(t, comp.Children(), 2)

	cmd, st := comp.Options().GetString(external.KeyCommand)
	assert.Equal(t, options.KeySet, st)
	assert.Equal(t, "my-metric --fast", cmd)
	assert.Contains(t, comp.Results().Keys(), "error_stat:psnr")
}

func TestNewMetricsUnknown(t *testing.T) {
	_, err := registry.Default().NewMetrics([]string{"ssim"}, registry.Deps{}, nil)
	assert.ErrorContains(t, err, "unknown metric")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := registry.Default(), registry.Default()
	delete(a.Metrics, "external")
	assert.Contains(t, b.MetricNames(), "external")
}

func TestNewCompressorBadOption(t *testing.T) {
	opts := options.New()
	opts.SetDouble("quantize:abs", 0)
	_, err := registry.Default().NewCompressor("quantize", opts)
	assert.Error(t, err)
}
