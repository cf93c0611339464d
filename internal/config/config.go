package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/extmetrics/internal/compress"
	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/options"
)

type Config struct {
	Metrics    []string   `yaml:"metrics" toml:"metrics"`
	External   External   `yaml:"external" toml:"external"`
	Compressor Compressor `yaml:"compressor" toml:"compressor"`
	Inputs     []Input    `yaml:"inputs" toml:"inputs"`
	Parallel   int        `yaml:"parallel" toml:"parallel"`
	Results    Results    `yaml:"results" toml:"results"`
	Log        Log        `yaml:"log" toml:"log"`
	Telemetry  Telemetry  `yaml:"telemetry" toml:"telemetry"`
}

type External struct {
	Command        string            `yaml:"command" toml:"command"`
	IOFormat       string            `yaml:"io_format" toml:"io_format"`
	Strict         bool              `yaml:"strict" toml:"strict"`
	TmpDir         string            `yaml:"tmp_dir" toml:"tmp_dir"`
	TimeoutSeconds int               `yaml:"timeout_seconds" toml:"timeout_seconds"`
	ZstdLevel      int               `yaml:"zstd_level" toml:"zstd_level"`
	Launcher       string            `yaml:"launcher" toml:"launcher"`
	Image          string            `yaml:"image" toml:"image"`
	Env            map[string]string `yaml:"env" toml:"env"`
}

type Compressor struct {
	Name        string  `yaml:"name" toml:"name"`
	ZstdLevel   int     `yaml:"zstd_level" toml:"zstd_level"`
	QuantizeAbs float64 `yaml:"quantize_abs" toml:"quantize_abs"`
}

type Input struct {
	Name   string   `yaml:"name" toml:"name"`
	Path   string   `yaml:"path" toml:"path"`
	Type   string   `yaml:"type" toml:"type"`
	Dims   []uint64 `yaml:"dims" toml:"dims"`
	Format string   `yaml:"format" toml:"format"`
}

type Results struct {
	Dir string `yaml:"dir" toml:"dir"`
}

type Log struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

type Telemetry struct {
	Textfile string `yaml:"textfile" toml:"textfile"`
}

const (
	LauncherProcess = "process"
	LauncherDocker  = "docker"
)

// Load reads a TOML file when path ends in .toml and YAML otherwise.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(raw, &cfg)
	} else {
		err = yaml.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate fills defaults in place and rejects incomplete configs.
func Validate(cfg *Config) error {
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = []string{"external"}
	}
	for _, m := range cfg.Metrics {
		if m == "external" && strings.TrimSpace(cfg.External.Command) == "" {
			return fmt.Errorf("external.command is required when the external metric is selected")
		}
	}

	e := &cfg.External
	if e.IOFormat == "" {
		e.IOFormat = external.DefaultIOFormat
	}
	if e.Launcher == "" {
		e.Launcher = LauncherProcess
	}
	switch e.Launcher {
	case LauncherProcess:
	case LauncherDocker:
		if e.Image == "" {
			return fmt.Errorf("external.image is required for the docker launcher")
		}
	default:
		return fmt.Errorf("unknown launcher %q", e.Launcher)
	}
	if e.TimeoutSeconds < 0 {
		return fmt.Errorf("external.timeout_seconds must not be negative")
	}

	if cfg.Compressor.Name == "" {
		cfg.Compressor.Name = "zstd"
	}

	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("no inputs defined")
	}
	for i := range cfg.Inputs {
		in := &cfg.Inputs[i]
		if in.Path == "" {
			return fmt.Errorf("input %d: path is required", i)
		}
		if in.Name == "" {
			in.Name = strings.TrimSuffix(filepath.Base(in.Path), filepath.Ext(in.Path))
		}
		if _, err := data.ParseDType(in.Type); err != nil {
			return fmt.Errorf("input %q: %w", in.Name, err)
		}
		if len(in.Dims) == 0 {
			return fmt.Errorf("input %q: dims are required", in.Name)
		}
		for _, d := range in.Dims {
			if d == 0 {
				return fmt.Errorf("input %q: dims must be positive", in.Name)
			}
		}
		if in.Format == "" {
			in.Format = "posix"
		}
	}

	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

// Timeout is the per-invocation limit, zero for none.
func (e External) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// MetricOptions renders the external section as plugin options.
func (cfg *Config) MetricOptions() *options.Options {
	o := options.New()
	o.SetString(external.KeyCommand, cfg.External.Command)
	o.SetString(external.KeyIOFormat, cfg.External.IOFormat)
	o.SetBool(external.KeyStrict, cfg.External.Strict)
	if cfg.External.TmpDir != "" {
		o.SetString(external.KeyTmpDir, cfg.External.TmpDir)
	}
	if cfg.External.ZstdLevel > 0 {
		o.SetInt32(compress.KeyZstdLevel, int32(cfg.External.ZstdLevel))
	}
	return o
}

// CompressorOptions renders the compressor section as compressor options.
func (cfg *Config) CompressorOptions() *options.Options {
	o := options.New()
	if cfg.Compressor.ZstdLevel > 0 {
		o.SetInt32(compress.KeyZstdLevel, int32(cfg.Compressor.ZstdLevel))
	}
	if cfg.Compressor.QuantizeAbs != 0 {
		o.SetDouble(compress.KeyQuantizeAbs, cfg.Compressor.QuantizeAbs)
	}
	return o
}
