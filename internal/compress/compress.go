// Package compress holds the compressors driven by an evaluation cycle.
package compress

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/options"
)

var ErrUnsupportedType = errors.New("unsupported element type")

// Compressor turns a buffer into an opaque byte buffer and back. Decompress
// takes the original buffer's type and shape from like.
type Compressor interface {
	Name() string
	Compress(in *data.Buffer) (*data.Buffer, error)
	Decompress(compressed, like *data.Buffer) (*data.Buffer, error)
	SetOptions(opts *options.Options) error
	Options() *options.Options
	Clone() Compressor
}

// Compressors maps a compressor name to its constructor.
type Compressors map[string]func() Compressor

func DefaultCompressors() Compressors {
	return Compressors{
		"noop":     func() Compressor { return Noop{} },
		"zstd":     func() Compressor { return NewZstd() },
		"quantize": func() Compressor { return NewQuantize() },
	}
}

func (c Compressors) New(name string) (Compressor, error) {
	ctor, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown compressor %q", name)
	}
	return ctor(), nil
}

func (c Compressors) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Ratio is uncompressed bytes over compressed bytes, or 0 when compressed
// is empty.
func Ratio(in, compressed *data.Buffer) float64 {
	if compressed.SizeInBytes() == 0 {
		return 0
	}
	return float64(in.SizeInBytes()) / float64(compressed.SizeInBytes())
}

func bytesBuffer(raw []byte) (*data.Buffer, error) {
	return data.New(data.Byte, []uint64{uint64(len(raw))}, raw)
}

// Noop stores the raw bytes unchanged.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Compress(in *data.Buffer) (*data.Buffer, error) {
	return bytesBuffer(append([]byte(nil), in.Bytes()...))
}

func (Noop) Decompress(compressed, like *data.Buffer) (*data.Buffer, error) {
	return data.New(like.DType(), like.Dims(), append([]byte(nil), compressed.Bytes()...))
}

func (Noop) SetOptions(*options.Options) error { return nil }

func (Noop) Options() *options.Options { return options.New() }

func (Noop) Clone() Compressor { return Noop{} }
