package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/signalnine/extmetrics/internal/config"
	"github.com/signalnine/extmetrics/internal/docker"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/registry"
	"github.com/signalnine/extmetrics/internal/result"
)

func TestFilterInputs(t *testing.T) {
	inputs := []config.Input{
		{Name: "ramp"},
		{Name: "noise"},
		{Name: "zeros"},
	}

	tests := []struct {
		name   string
		filter string
		want   int
	}{
		{"empty filter returns all", "", 3},
		{"exact match", "noise", 1},
		{"comma separated", "ramp, zeros", 2},
		{"no match", "missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterInputs(inputs, tt.filter)
			if len(got) != tt.want {
				t.Errorf("filterInputs(%q) returned %d, want %d", tt.filter, len(got), tt.want)
			}
		})
	}
}

func TestBuildInvoker(t *testing.T) {
	inv, err := buildInvoker(config.External{Launcher: config.LauncherProcess, TimeoutSeconds: 5, Env: map[string]string{"A": "1"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := inv.(*external.ProcessInvoker)
	if !ok {
		t.Fatalf("process launcher built %T", inv)
	}
	if p.Timeout.Seconds() != 5 {
		t.Errorf("timeout = %v, want 5s", p.Timeout)
	}
	if p.Env[len(p.Env)-1] != "A=1" {
		t.Errorf("extra env not appended: %v", p.Env[len(p.Env)-1])
	}

	inv, err = buildInvoker(config.External{Launcher: config.LauncherDocker, Image: "metrics:latest"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := inv.(*docker.Invoker); !ok || d.Image != "metrics:latest" {
		t.Errorf("docker launcher built %#v", inv)
	}

	if _, err := buildInvoker(config.External{Launcher: config.LauncherDocker}, nil); err == nil {
		t.Error("expected an error for docker without an image")
	}
	if _, err := buildInvoker(config.External{Launcher: "ssh"}, nil); err == nil {
		t.Error("expected an error for an unknown launcher")
	}
}

func writeFloats(t *testing.T, values ...float32) string {
	t.Helper()
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	path := filepath.Join(t.TempDir(), "in.f32")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEvalJSON(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	script := filepath.Join(t.TempDir(), "metric.sh")
	body := "#!/bin/sh\nprintf 'external:api=1\\nsize=%s\\n' \"$(wc -c < \"$4\")\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	f := &evalFlags{
		input:       writeFloats(t, 1, 2, 3, 4),
		inputFormat: "posix",
		dtype:       "float",
		dims:        []uint{2, 2},
		metrics:     []string{"external", "error_stat"},
		command:     script,
		ioFormat:    "posix",
		tmpDir:      t.TempDir(),
		launcher:    config.LauncherProcess,
		compressor:  "zstd",
		format:      "json",
	}
	var out bytes.Buffer
	if err := runEval(context.Background(), f, &out); err != nil {
		t.Fatal(err)
	}

	var meta result.EvalMeta
	if err := json.Unmarshal(out.Bytes(), &meta); err != nil {
		t.Fatalf("decoding %s: %v", out.String(), err)
	}
	if meta.Outcome != result.OutcomeOK {
		t.Errorf("outcome = %q (%s)", meta.Outcome, meta.Error)
	}
	if got := meta.Results["external:results:size"]; got != 16.0 {
		t.Errorf("external:results:size = %v, want 16", got)
	}
	if got := meta.Results["error_stat:max_error"]; got != 0.0 {
		t.Errorf("error_stat:max_error = %v, want 0", got)
	}
}

func TestRunEvalTable(t *testing.T) {
	f := &evalFlags{
		input:       writeFloats(t, 0, 0.5, 1),
		inputFormat: "posix",
		dtype:       "float",
		dims:        []uint{3},
		metrics:     []string{"error_stat"},
		ioFormat:    "posix",
		launcher:    config.LauncherProcess,
		compressor:  "quantize",
		quantizeAbs: 0.25,
		format:      "table",
	}
	var out bytes.Buffer
	if err := runEval(context.Background(), f, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"compressor  quantize", "outcome     ok", "error_stat:psnr"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunEvalRejectsMissingCommand(t *testing.T) {
	f := &evalFlags{
		input:    writeFloats(t, 1),
		dtype:    "float",
		dims:     []uint{1},
		metrics:  []string{"external"},
		launcher: config.LauncherProcess,
	}
	if err := runEval(context.Background(), f, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error without an external command")
	}
}

func TestListRegistry(t *testing.T) {
	var out bytes.Buffer
	listRegistry(registry.Default(), &out)
	for _, want := range []string{"- external", "- error_stat", "- zstd", "- quantize", "posix"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("list output missing %q:\n%s", want, out.String())
		}
	}
}
