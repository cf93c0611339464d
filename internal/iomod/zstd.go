package iomod

import (
	"fmt"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/options"
)

// Zstd stores the raw element bytes as a single zstd frame.
type Zstd struct {
	mu    sync.RWMutex
	level int
}

func NewZstd() *Zstd {
	return &Zstd{level: 3}
}

func (z *Zstd) Name() string { return "zstd" }

func (z *Zstd) Write(buf *data.Buffer, path string) error {
	z.mu.RLock()
	level := zstd.EncoderLevelFromZstd(z.level)
	z.mu.RUnlock()

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	if err := os.WriteFile(path, enc.EncodeAll(buf.Bytes(), nil), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (z *Zstd) Read(path string, like *data.Buffer) (*data.Buffer, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	buf, err := shapeFor(raw, like)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return buf, nil
}

func (z *Zstd) SetOptions(opts *options.Options) error {
	if level, st := opts.GetInt32("zstd:level"); st == options.KeySet {
		if level < 1 || level > 22 {
			return fmt.Errorf("zstd:level %d out of range [1, 22]", level)
		}
		z.mu.Lock()
		z.level = int(level)
		z.mu.Unlock()
	}
	return nil
}

func (z *Zstd) Options() *options.Options {
	z.mu.RLock()
	defer z.mu.RUnlock()
	o := options.New()
	o.SetInt32("zstd:level", int32(z.level))
	return o
}

func (z *Zstd) Clone() Module {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return &Zstd{level: z.level}
}
