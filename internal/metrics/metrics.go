// Package metrics defines the contract every metrics plugin implements and a
// composite that fans one compress/decompress cycle out to several plugins.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/options"
)

// Plugin observes one compress/decompress cycle and publishes results.
//
// BeginCompress sees the uncompressed input before compression.
// EndDecompress sees the decompressed output and the decompressor's return
// code; it returns an error only when the plugin could not evaluate at all.
type Plugin interface {
	Name() string
	BeginCompress(input, compressed *data.Buffer)
	EndDecompress(ctx context.Context, compressed, output *data.Buffer, rc int) error
	SetOptions(opts *options.Options) error
	Options() *options.Options
	Results() *options.Options
	Clone() Plugin
}

// Composite forwards every call to each child in order.
type Composite struct {
	children []Plugin
}

func NewComposite(children ...Plugin) *Composite {
	return &Composite{children: children}
}

func (c *Composite) Name() string { return "composite" }

func (c *Composite) Children() []Plugin { return c.children }

func (c *Composite) BeginCompress(input, compressed *data.Buffer) {
	for _, p := range c.children {
		p.BeginCompress(input, compressed)
	}
}

// EndDecompress runs every child even when one fails and joins the errors.
func (c *Composite) EndDecompress(ctx context.Context, compressed, output *data.Buffer, rc int) error {
	var errs []error
	for _, p := range c.children {
		if err := p.EndDecompress(ctx, compressed, output, rc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SetOptions hands the full set to every child; each picks its own keys.
func (c *Composite) SetOptions(opts *options.Options) error {
	for _, p := range c.children {
		if err := p.SetOptions(opts); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

func (c *Composite) Options() *options.Options {
	out := options.New()
	for _, p := range c.children {
		out.Merge(p.Options())
	}
	return out
}

// Results merges child results. Keys are namespaced per plugin, so later
// children cannot clobber earlier ones in practice.
func (c *Composite) Results() *options.Options {
	out := options.New()
	for _, p := range c.children {
		out.Merge(p.Results())
	}
	return out
}

func (c *Composite) Clone() Plugin {
	children := make([]Plugin, len(c.children))
	for i, p := range c.children {
		children[i] = p.Clone()
	}
	return &Composite{children: children}
}
