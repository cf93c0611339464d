package external

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/signalnine/extmetrics/internal/data"
	"github.com/signalnine/extmetrics/internal/exchange"
	"github.com/signalnine/extmetrics/internal/iomod"
	"github.com/signalnine/extmetrics/internal/logging"
	"github.com/signalnine/extmetrics/internal/metrics"
	"github.com/signalnine/extmetrics/internal/options"
	"github.com/signalnine/extmetrics/internal/telemetry"
)

const (
	KeyCommand  = "external:command"
	KeyIOFormat = "external:io_format"
	KeyStrict   = "external:strict"
	KeyTmpDir   = "external:tmp_dir"
)

const DefaultIOFormat = "posix"

// ErrNotStarted is returned by EndDecompress without a prior BeginCompress.
var ErrNotStarted = errors.New("end_decompress called before begin_compress")

type Config struct {
	Command   string
	IOFormat  string
	Formats   iomod.Formats
	Invoker   Invoker
	TempDir   string
	Strict    bool
	Logger    *zap.Logger
	Telemetry *telemetry.Metrics
}

// Plugin evaluates metrics by running an external program on each
// compress/decompress cycle.
type Plugin struct {
	mu        sync.Mutex
	command   string
	ioFormat  string
	tempDir   string
	strict    bool
	formats   iomod.Formats
	io        iomod.Module
	invoker   Invoker
	logger    *zap.Logger
	telemetry *telemetry.Metrics

	input   *data.Buffer
	results *options.Options
}

func New(cfg Config) (*Plugin, error) {
	if cfg.Formats == nil {
		cfg.Formats = iomod.DefaultFormats()
	}
	if cfg.IOFormat == "" {
		cfg.IOFormat = DefaultIOFormat
	}
	mod, err := cfg.Formats.New(cfg.IOFormat)
	if err != nil {
		return nil, err
	}
	logger := logging.OrNop(cfg.Logger).Named("external")
	if cfg.Invoker == nil {
		cfg.Invoker = &ProcessInvoker{Logger: logger}
	}
	return &Plugin{
		command:   cfg.Command,
		ioFormat:  cfg.IOFormat,
		tempDir:   cfg.TempDir,
		strict:    cfg.Strict,
		formats:   cfg.Formats,
		io:        mod,
		invoker:   cfg.Invoker,
		logger:    logger,
		telemetry: cfg.Telemetry,
		results:   UnsetResults(),
	}, nil
}

func (p *Plugin) Name() string { return "external" }

func (p *Plugin) BeginCompress(input, _ *data.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = input
}

// EndDecompress stages the captured input and output, runs the command and
// publishes its results. Both exchange files are gone when it returns. An
// error means nothing ran; results are then reset to unset.
func (p *Plugin) EndDecompress(ctx context.Context, _, output *data.Buffer, _ int) error {
	p.mu.Lock()
	input := p.input
	command, strict := p.command, p.strict
	store := &exchange.Store{Dir: p.tempDir, IO: p.io}
	p.mu.Unlock()

	if input == nil {
		return ErrNotStarted
	}
	res, err := p.evaluate(ctx, store, command, strict, input, output)
	if err != nil {
		res = UnsetResults()
	}
	p.mu.Lock()
	p.results = res
	p.mu.Unlock()
	return err
}

func (p *Plugin) evaluate(ctx context.Context, store *exchange.Store, command string, strict bool, input, output *data.Buffer) (*options.Options, error) {
	if output == nil {
		return nil, fmt.Errorf("%w: no decompressed buffer", exchange.ErrPrepare)
	}
	in, err := store.Stage(input, exchange.InputPattern)
	if err != nil {
		return nil, err
	}
	defer p.release(in)
	out, err := store.Stage(output, exchange.DecompressedPattern)
	if err != nil {
		return nil, err
	}
	defer p.release(out)
	p.telemetry.AddExchangeBytes(input.SizeInBytes() + output.SizeInBytes())

	argv, err := BuildCommand(command, ProtocolVersion, in.Path, out.Path, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", exchange.ErrPrepare, err)
	}
	p.logger.Debug("invoking", zap.Strings("argv", argv))

	o := p.invoker.Run(ctx, argv)
	res := Results(o, strict)
	code, _ := res.GetInt32(KeyErrorCode)
	p.telemetry.ObserveInvocation(code, o.Duration)

	fields := []zap.Field{
		zap.Int32("error_code", code),
		zap.Bool("exited", o.Exited),
		zap.Int("exit_code", o.ExitCode),
		zap.Duration("duration", o.Duration),
		zap.Int("stdout_bytes", len(o.Stdout)),
		zap.Int("stderr_bytes", len(o.Stderr)),
	}
	if o.Signal != "" {
		fields = append(fields, zap.String("signal", o.Signal))
	}
	switch {
	case !o.Started():
		p.logger.Error("invocation failed", append(fields, zap.Stringer("invoke_error", o.Err), zap.Error(o.Cause))...)
	case code == CodeFormatError:
		p.logger.Warn("unparseable metrics output", append(fields, zap.String("stderr", truncate(string(o.Stderr), 512)))...)
	default:
		p.logger.Debug("invocation finished", fields...)
	}
	return res, nil
}

func (p *Plugin) release(h *exchange.Handle) {
	if err := h.Release(); err != nil {
		p.logger.Warn("releasing exchange file", zap.String("path", h.Path), zap.Error(err))
	}
}

// SetOptions applies the keys this plugin understands and forwards the set
// to the io module. A failed call leaves the plugin unchanged.
func (p *Plugin) SetOptions(opts *options.Options) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	name, mod := p.ioFormat, p.io.Clone()
	if n, st := opts.GetString(KeyIOFormat); st == options.KeySet && n != p.ioFormat {
		m, err := p.formats.New(n)
		if err != nil {
			return err
		}
		name, mod = n, m
	}
	if err := mod.SetOptions(opts); err != nil {
		return fmt.Errorf("io format %s: %w", name, err)
	}
	p.io, p.ioFormat = mod, name
	if cmd, st := opts.GetString(KeyCommand); st == options.KeySet {
		p.command = cmd
	}
	if strict, st := opts.GetBool(KeyStrict); st == options.KeySet {
		p.strict = strict
	}
	if dir, st := opts.GetString(KeyTmpDir); st == options.KeySet {
		p.tempDir = dir
	}
	return nil
}

func (p *Plugin) Options() *options.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := options.New()
	o.SetString(KeyCommand, p.command)
	o.SetString(KeyIOFormat, p.ioFormat)
	o.SetBool(KeyStrict, p.strict)
	o.SetString(KeyTmpDir, p.tempDir)
	o.Merge(p.io.Options())
	return o
}

// Results returns a copy of the last published results.
func (p *Plugin) Results() *options.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results.Clone()
}

func (p *Plugin) Clone() metrics.Plugin {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Plugin{
		command:   p.command,
		ioFormat:  p.ioFormat,
		tempDir:   p.tempDir,
		strict:    p.strict,
		formats:   p.formats,
		io:        p.io.Clone(),
		invoker:   p.invoker,
		logger:    p.logger,
		telemetry: p.telemetry,
		input:     p.input,
		results:   p.results.Clone(),
	}
}
