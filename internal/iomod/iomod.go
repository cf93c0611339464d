// Package iomod persists data buffers to files in a named format.
package iomod

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/options"
)

var ErrUnknownFormat = errors.New("unknown io format")

// Module reads and writes buffers. Implementations must be safe for
// concurrent Read and Write calls once configured.
type Module interface {
	Name() string
	Write(buf *data.Buffer, path string) error
	// Read loads path using like for the element type and shape. A nil like
	// reads the file as a flat byte buffer.
	Read(path string, like *data.Buffer) (*data.Buffer, error)
	SetOptions(opts *options.Options) error
	Options() *options.Options
	Clone() Module
}

// Formats maps a format name to its constructor.
type Formats map[string]func() Module

// DefaultFormats returns the formats shipped with extmetrics.
func DefaultFormats() Formats {
	return Formats{
		"posix": func() Module { return &Posix{} },
		"zstd":  func() Module { return NewZstd() },
	}
}

func (f Formats) New(name string) (Module, error) {
	ctor, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, name)
	}
	return ctor(), nil
}

func (f Formats) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func shapeFor(raw []byte, like *data.Buffer) (*data.Buffer, error) {
	if like == nil {
		return data.New(data.Byte, []uint64{uint64(len(raw))}, raw)
	}
	return data.New(like.DType(), like.Dims(), raw)
}
