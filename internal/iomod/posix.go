package iomod

import (
	"fmt"
	"os"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/options"
)

// Posix stores the raw element bytes with no header.
type Posix struct{}

func (p *Posix) Name() string { return "posix" }

func (p *Posix) Write(buf *data.Buffer, path string) error {
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (p *Posix) Read(path string, like *data.Buffer) (*data.Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	buf, err := shapeFor(raw, like)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return buf, nil
}

func (p *Posix) SetOptions(*options.Options) error { return nil }

func (p *Posix) Options() *options.Options { return options.New() }

func (p *Posix) Clone() Module { return &Posix{} }
