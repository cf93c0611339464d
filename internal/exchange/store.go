// Package exchange stages data buffers into uniquely named temporary files
// that an external program can read.
package exchange

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/iomod"
)

// ErrPrepare wraps every failure that happens before a child is spawned.
var ErrPrepare = errors.New("preparing exchange file")

const (
	InputPattern        = ".pressioin*"
	DecompressedPattern = ".pressioout*"
)

// Store creates exchange files in Dir (os.TempDir when empty) and
// serializes buffers into them with IO.
type Store struct {
	Dir string
	IO  iomod.Module
}

// Handle owns one exchange file until Release.
type Handle struct {
	Path string

	file *os.File
	once sync.Once
	err  error
}

// Stage creates a unique file matching pattern and writes buf into it. The
// handle's path is absolute, even for a relative Dir. On error nothing is
// left on disk.
func (s *Store) Stage(buf *data.Buffer, pattern string) (*Handle, error) {
	if s.IO == nil {
		return nil, fmt.Errorf("%w: no io module configured", ErrPrepare)
	}
	f, err := os.CreateTemp(s.Dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file: %v", ErrPrepare, err)
	}
	path, err := filepath.Abs(f.Name())
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("%w: resolving temp file: %v", ErrPrepare, err)
	}
	h := &Handle{Path: path, file: f}
	if err := s.IO.Write(buf, h.Path); err != nil {
		h.Release()
		return nil, fmt.Errorf("%w: %s: %v", ErrPrepare, s.IO.Name(), err)
	}
	return h, nil
}

// Release closes the descriptor and removes the file. Only the first call
// does any work; later calls return the first result.
func (h *Handle) Release() error {
	h.once.Do(func() {
		closeErr := h.file.Close()
		rmErr := os.Remove(h.Path)
		if rmErr != nil && errors.Is(rmErr, os.ErrNotExist) {
			rmErr = nil
		}
		h.err = errors.Join(closeErr, rmErr)
	})
	return h.err
}
