package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signalnine/extmetrics/internal/logging"
)

// ExecFailedExitCode is the status reported when the program image could not
// be loaded. It matches a child calling exit(-1) after a failed exec.
const ExecFailedExitCode = 255

// DrainGrace bounds how long output is still read after cancellation, for
// descendants that escaped the process group and keep the pipes open.
const DrainGrace = 2 * time.Second

// InvokeError classifies failures that prevent a child from running at all.
type InvokeError int

const (
	InvokeOK InvokeError = iota
	PipeCreationFailed
	SpawnFailed
)

func (e InvokeError) String() string {
	switch e {
	case InvokeOK:
		return "none"
	case PipeCreationFailed:
		return "pipe_creation_failed"
	case SpawnFailed:
		return "spawn_failed"
	default:
		return fmt.Sprintf("invoke_error(%d)", int(e))
	}
}

// Outcome is what one invocation produced. ExitCode is meaningful only when
// Exited is true; a child terminated by a signal has Exited false and Signal
// set.
type Outcome struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Exited   bool
	Signal   string
	Err      InvokeError
	Cause    error
	Duration time.Duration
}

// Started reports whether a child ran (or, for exec failures, was emulated).
func (o *Outcome) Started() bool { return o.Err == InvokeOK }

// Invoker runs an argument vector to completion.
type Invoker interface {
	Run(ctx context.Context, argv []string) *Outcome
}

// ProcessInvoker runs the command as a local child process. Stdin is the
// null device; stdout and stderr go to dedicated pipes that are drained
// concurrently.
type ProcessInvoker struct {
	Dir     string
	Env     []string
	Timeout time.Duration
	Logger  *zap.Logger
}

func (p *ProcessInvoker) Run(ctx context.Context, argv []string) *Outcome {
	log := logging.OrNop(p.Logger)
	if len(argv) == 0 {
		return &Outcome{ExitCode: -1, Err: SpawnFailed, Cause: errors.New("empty argument vector")}
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return &Outcome{ExitCode: -1, Err: PipeCreationFailed, Cause: fmt.Errorf("stdout pipe: %w", err)}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(outR, outW)
		return &Outcome{ExitCode: -1, Err: PipeCreationFailed, Cause: fmt.Errorf("stderr pipe: %w", err)}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.WaitDelay = DrainGrace
	killGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		closeAll(outR, outW, errR, errW)
		if cause, ok := execFailure(err); ok {
			log.Debug("exec failed", zap.String("program", argv[0]), zap.Error(cause))
			return &Outcome{
				Stdout:   []byte(argv[0] + "\n"),
				Stderr:   []byte(fmt.Sprintf(" failed to exec process: %v\n", cause)),
				ExitCode: ExecFailedExitCode,
				Exited:   true,
				Duration: time.Since(start),
			}
		}
		return &Outcome{ExitCode: -1, Err: SpawnFailed, Cause: err, Duration: time.Since(start)}
	}
	// The child holds its own copies; ours must go or the readers never see EOF.
	closeAll(outW, errW)

	stopDeadline := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(DrainGrace)
		outR.SetReadDeadline(deadline)
		errR.SetReadDeadline(deadline)
	})

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, outR)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, errR)
		return err
	})
	drainErr := g.Wait()
	stopDeadline()
	closeAll(outR, errR)
	waitErr := cmd.Wait()

	o := &Outcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	switch {
	case errors.Is(drainErr, os.ErrDeadlineExceeded):
		log.Warn("output still open after cancellation, giving up", zap.Duration("grace", DrainGrace))
	case drainErr != nil:
		log.Warn("reading child output", zap.Error(drainErr))
	}
	ps := cmd.ProcessState
	if ps == nil {
		o.Err = SpawnFailed
		o.Cause = waitErr
		return o
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		o.Signal = ws.Signal().String()
		return o
	}
	o.Exited = ps.Exited()
	o.ExitCode = ps.ExitCode()
	return o
}

// execFailure reports whether err means the program itself could not be
// loaded, as opposed to the runtime failing to fork.
func execFailure(err error) (error, bool) {
	var ee *exec.Error
	if errors.As(err, &ee) {
		return ee.Err, true
	}
	var pe *fs.PathError
	if errors.As(err, &pe) && (errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.ENOEXEC)) {
		return pe.Err, true
	}
	return nil, false
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}
