//go:build integration

package main

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/docker"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/iomod"
	"github.com/signalnine/extmetrics/internal/options"
	"github.com/signalnine/extmetrics/internal/registry"
	"github.com/signalnine/extmetrics/internal/result"
	"github.com/signalnine/extmetrics/internal/runner"
)

// writeRamp writes n little-endian float32 values 0..n-1.
func writeRamp(t *testing.T, n int) string {
	t.Helper()
	raw := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float32(i)))
	}
	path := filepath.Join(t.TempDir(), "ramp.f32")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func batch(t *testing.T, inv external.Invoker, command string) *result.EvalMeta {
	t.Helper()
	reg := registry.Default()
	opts := options.New()
	opts.SetString(external.KeyCommand, command)
	opts.SetString(external.KeyTmpDir, t.TempDir())
	plugins, err := reg.NewMetrics([]string{"external", "error_stat"}, registry.Deps{Formats: reg.Formats, Invoker: inv}, opts)
	if err != nil {
		t.Fatal(err)
	}
	comp, err := reg.NewCompressor("quantize", nil)
	if err != nil {
		t.Fatal(err)
	}

	runDir, err := result.CreateRunDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	metas, errs := runner.RunBatch(context.Background(), &runner.BatchOpts{
		Inputs: []runner.Input{{
			Name:  "ramp",
			Path:  writeRamp(t, 256),
			DType: data.Float,
			Dims:  []uint64{16, 16},
			IO:    &iomod.Posix{},
		}},
		Compressor:  comp,
		Metrics:     plugins,
		MetricNames: []string{"external", "error_stat"},
		RunDir:      runDir,
		Parallel:    1,
	})
	if len(errs) > 0 {
		t.Fatalf("batch errors: %v", errs)
	}

	stored, err := result.ReadEvalMeta(filepath.Join(result.EvalDir(runDir, "ramp", metas[0].ID), "meta.json"))
	if err != nil {
		t.Fatal(err)
	}
	return stored
}

func writeMetricScript(t *testing.T) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "metric.sh")
	body := "#!/bin/sh\nprintf 'external:api=1\\nin_bytes=%s\\n' \"$(wc -c < \"$4\")\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func checkMeta(t *testing.T, meta *result.EvalMeta) {
	t.Helper()
	if meta.Outcome != result.OutcomeOK {
		t.Fatalf("outcome = %s (%s)", meta.Outcome, meta.Error)
	}
	if got := meta.Results["external:results:in_bytes"]; got != 1024.0 {
		t.Errorf("in_bytes = %v, want 1024", got)
	}
	if _, ok := meta.Results["error_stat:max_error"]; !ok {
		t.Error("error_stat results missing")
	}
}

func TestProcessLauncherIntegration(t *testing.T) {
	checkMeta(t, batch(t, &external.ProcessInvoker{}, writeMetricScript(t)))
}

func TestDockerLauncherIntegration(t *testing.T) {
	if os.Getenv("EXTMETRICS_DOCKER_TESTS") == "" {
		t.Skip("set EXTMETRICS_DOCKER_TESTS=1 to run docker integration tests")
	}
	script := writeMetricScript(t)
	inv := &docker.Invoker{
		Image:       "alpine:3.20",
		ExtraMounts: []docker.Mount{{Source: filepath.Dir(script), Target: "/scripts", ReadOnly: true}},
	}
	checkMeta(t, batch(t, inv, "/scripts/metric.sh"))
}
