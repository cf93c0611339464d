package compress

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/options"
)

const KeyQuantizeAbs = "quantize:abs"

// maxIndex is the first grid index an int64 cannot hold.
const maxIndex = 1 << 63

// Quantize is a lossy compressor for floating point buffers. Each value is
// snapped to a grid of step 2*abs, so every reconstructed value is within
// abs of the original. The grid indices are varint coded and zstd packed.
type Quantize struct {
	abs  float64
	zstd *Zstd
}

func NewQuantize() *Quantize {
	return &Quantize{abs: 1e-4, zstd: NewZstd()}
}

func (q *Quantize) Name() string { return "quantize" }

func (q *Quantize) Compress(in *data.Buffer) (*data.Buffer, error) {
	if !in.DType().IsFloating() {
		return nil, fmt.Errorf("%w: quantize needs float or double, got %s", ErrUnsupportedType, in.DType())
	}
	step := 2 * q.abs
	values := in.Float64s()
	packed := make([]byte, 0, len(values)*2)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("quantize: non-finite value %v", v)
		}
		idx := math.Round(v / step)
		if math.Abs(idx) >= maxIndex {
			return nil, fmt.Errorf("quantize: %v is out of range for abs %v", v, q.abs)
		}
		packed = binary.AppendVarint(packed, int64(idx))
	}
	raw, err := q.zstd.encode(packed)
	if err != nil {
		return nil, err
	}
	return bytesBuffer(raw)
}

func (q *Quantize) Decompress(compressed, like *data.Buffer) (*data.Buffer, error) {
	if !like.DType().IsFloating() {
		return nil, fmt.Errorf("%w: quantize needs float or double, got %s", ErrUnsupportedType, like.DType())
	}
	packed, err := q.zstd.decode(compressed.Bytes())
	if err != nil {
		return nil, err
	}
	step := 2 * q.abs
	values := make([]float64, 0, like.Len())
	for len(packed) > 0 {
		idx, n := binary.Varint(packed)
		if n <= 0 {
			return nil, fmt.Errorf("quantize: corrupt stream at value %d", len(values))
		}
		values = append(values, float64(idx)*step)
		packed = packed[n:]
	}
	if len(values) != like.Len() {
		return nil, fmt.Errorf("quantize: decoded %d values, want %d", len(values), like.Len())
	}
	return data.FromFloat64s(like.DType(), like.Dims(), values)
}

func (q *Quantize) SetOptions(opts *options.Options) error {
	if abs, st := opts.GetDouble(KeyQuantizeAbs); st == options.KeySet {
		if !(abs > 0) || math.IsInf(abs, 0) {
			return fmt.Errorf("%s must be a positive finite bound, got %v", KeyQuantizeAbs, abs)
		}
		q.abs = abs
	}
	return q.zstd.SetOptions(opts)
}

func (q *Quantize) Options() *options.Options {
	o := q.zstd.Options()
	o.SetDouble(KeyQuantizeAbs, q.abs)
	return o
}

func (q *Quantize) Clone() Compressor {
	return &Quantize{abs: q.abs, zstd: q.zstd.Clone().(*Zstd)}
}
