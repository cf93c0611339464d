package logging_test

import (
	"path/filepath"
	"testing"

	"github.com/signalnine/extmetrics/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := logging.New(logging.Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	l, err := logging.New(logging.Config{Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)
	l.Debug("hello")
	require.NoError(t, l.Sync())
	assert.FileExists(t, path)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logging.OrNop(nil))
}
