package errorstat

import (
	"context"
	"errors"
	"sync"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/metrics"
	"github.com/signalnine/extmetrics/internal/options"
)

const prefix = "error_stat:"

var errNotStarted = errors.New("end_decompress called before begin_compress")

// Plugin publishes Stats under error_stat:* keys. Until a cycle completes
// every key is present but unset.
type Plugin struct {
	mu    sync.Mutex
	input *data.Buffer
	stats *Stats
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "error_stat" }

// BeginCompress keeps a private copy of input.
func (p *Plugin) BeginCompress(input, _ *data.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = input.Clone()
}

func (p *Plugin) EndDecompress(_ context.Context, _, output *data.Buffer, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.input == nil {
		return errNotStarted
	}
	s, err := Compute(p.input.Float64s(), output.Float64s())
	if err != nil {
		p.stats = nil
		return err
	}
	p.stats = &s
	return nil
}

func (p *Plugin) SetOptions(*options.Options) error { return nil }

func (p *Plugin) Options() *options.Options { return options.New() }

func (p *Plugin) Results() *options.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := options.New()
	for _, f := range (Stats{}).fields() {
		r.SetType(prefix+f.name, options.Double)
	}
	if p.stats != nil {
		for _, f := range p.stats.fields() {
			r.SetDouble(prefix+f.name, f.value)
		}
	}
	return r
}

func (p *Plugin) Clone() metrics.Plugin {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &Plugin{input: p.input}
	if p.stats != nil {
		s := *p.stats
		c.stats = &s
	}
	return c
}
