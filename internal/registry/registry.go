// Package registry builds the name to constructor tables used by the CLI.
// Everything is constructed explicitly at startup; nothing registers itself.
package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/signalnine/extmetrics/internal/compress"
	"github.com/signalnine/extmetrics/internal/errorstat"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/iomod"
	"github.com/signalnine/extmetrics/internal/metrics"
	"github.com/signalnine/extmetrics/internal/options"
	"github.com/signalnine/extmetrics/internal/telemetry"
)

// Deps are handed to every metric constructor.
type Deps struct {
	Formats   iomod.Formats
	Invoker   external.Invoker
	Logger    *zap.Logger
	Telemetry *telemetry.Metrics
}

// MetricFactory builds a metric configured from opts.
type MetricFactory func(deps Deps, opts *options.Options) (metrics.Plugin, error)

type Registry struct {
	Formats     iomod.Formats
	Compressors compress.Compressors
	Metrics     map[string]MetricFactory
}

func Default() *Registry {
	return &Registry{
		Formats:     iomod.DefaultFormats(),
		Compressors: compress.DefaultCompressors(),
		Metrics: map[string]MetricFactory{
			"external":   newExternal,
			"error_stat": newErrorStat,
		},
	}
}

func newExternal(deps Deps, opts *options.Options) (metrics.Plugin, error) {
	p, err := external.New(external.Config{
		Formats:   deps.Formats,
		Invoker:   deps.Invoker,
		Logger:    deps.Logger,
		Telemetry: deps.Telemetry,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetOptions(opts); err != nil {
		return nil, err
	}
	return p, nil
}

func newErrorStat(_ Deps, opts *options.Options) (metrics.Plugin, error) {
	p := errorstat.New()
	return p, p.SetOptions(opts)
}

// NewMetrics builds the named metrics into a composite, in order.
func (r *Registry) NewMetrics(names []string, deps Deps, opts *options.Options) (*metrics.Composite, error) {
	if deps.Formats == nil {
		deps.Formats = r.Formats
	}
	if opts == nil {
		opts = options.New()
	}
	plugins := make([]metrics.Plugin, 0, len(names))
	for _, name := range names {
		factory, ok := r.Metrics[name]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q (available: %v)", name, r.MetricNames())
		}
		p, err := factory(deps, opts)
		if err != nil {
			return nil, fmt.Errorf("creating metric %s: %w", name, err)
		}
		plugins = append(plugins, p)
	}
	return metrics.NewComposite(plugins...), nil
}

// NewCompressor builds and configures the named compressor.
func (r *Registry) NewCompressor(name string, opts *options.Options) (compress.Compressor, error) {
	c, err := r.Compressors.New(name)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		if err := c.SetOptions(opts); err != nil {
			return nil, fmt.Errorf("configuring compressor %s: %w", name, err)
		}
	}
	return c, nil
}

func (r *Registry) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for n := range r.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
