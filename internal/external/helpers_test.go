package external_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalnine/extmetrics/internal/data"
)

// writeScript writes an executable /bin/sh script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "metric.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func floats(t *testing.T, dims []uint64, values ...float64) *data.Buffer {
	t.Helper()
	b, err := data.FromFloat64s(data.Float, dims, values)
	require.NoError(t, err)
	return b
}
