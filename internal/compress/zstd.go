package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/options"
)

const KeyZstdLevel = "zstd:level"

// Zstd is lossless. The encoder is rebuilt only when the level changes.
type Zstd struct {
	mu    sync.Mutex
	level int
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func NewZstd() *Zstd { return &Zstd{level: 3} }

func (z *Zstd) Name() string { return "zstd" }

func (z *Zstd) codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.level)))
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		z.enc = enc
	}
	if z.dec == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		z.dec = dec
	}
	return z.enc, z.dec, nil
}

func (z *Zstd) encode(raw []byte) ([]byte, error) {
	enc, _, err := z.codecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, nil), nil
}

func (z *Zstd) decode(raw []byte) ([]byte, error) {
	_, dec, err := z.codecs()
	if err != nil {
		return nil, err
	}
	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

func (z *Zstd) Compress(in *data.Buffer) (*data.Buffer, error) {
	raw, err := z.encode(in.Bytes())
	if err != nil {
		return nil, err
	}
	return bytesBuffer(raw)
}

func (z *Zstd) Decompress(compressed, like *data.Buffer) (*data.Buffer, error) {
	raw, err := z.decode(compressed.Bytes())
	if err != nil {
		return nil, err
	}
	return data.New(like.DType(), like.Dims(), raw)
}

func (z *Zstd) SetOptions(opts *options.Options) error {
	level, st := opts.GetInt32(KeyZstdLevel)
	if st != options.KeySet {
		return nil
	}
	if level < 1 || level > 22 {
		return fmt.Errorf("%s %d out of range [1, 22]", KeyZstdLevel, level)
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if int(level) != z.level {
		z.level = int(level)
		if z.enc != nil {
			z.enc.Close()
			z.enc = nil
		}
	}
	return nil
}

func (z *Zstd) Options() *options.Options {
	z.mu.Lock()
	defer z.mu.Unlock()
	o := options.New()
	o.SetInt32(KeyZstdLevel, int32(z.level))
	return o
}

func (z *Zstd) Clone() Compressor {
	z.mu.Lock()
	defer z.mu.Unlock()
	return &Zstd{level: z.level}
}
