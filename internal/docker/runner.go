// Package docker runs the external metrics command inside a container. The
// directories holding the exchange files are bind-mounted at their host
// paths so the rendered command line works unchanged.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
	"go.uber.org/zap"

	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/logging"
)

// pathFlags name the arguments whose values are host paths to mount.
var pathFlags = map[string]bool{
	"--input":        true,
	"--decompressed": true,
}

type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Invoker implements external.Invoker with one container per invocation.
type Invoker struct {
	Image       string
	Env         map[string]string
	ExtraMounts []Mount
	Timeout     time.Duration
	CPULimit    float64
	MemoryLimit int64
	UserID      string
	Logger      *zap.Logger
}

var _ external.Invoker = (*Invoker)(nil)

func (inv *Invoker) Run(ctx context.Context, argv []string) *external.Outcome {
	log := logging.OrNop(inv.Logger).Named("docker")
	if len(argv) == 0 {
		return &external.Outcome{ExitCode: -1, Err: external.SpawnFailed, Cause: fmt.Errorf("empty argument vector")}
	}
	start := time.Now()
	fail := func(err error) *external.Outcome {
		return &external.Outcome{ExitCode: -1, Err: external.SpawnFailed, Cause: err, Duration: time.Since(start)}
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fail(fmt.Errorf("creating docker client: %w", err))
	}
	defer cli.Close()

	envSlice := make([]string, 0, len(inv.Env))
	for k, v := range inv.Env {
		envSlice = append(envSlice, k+"="+v)
	}
	sort.Strings(envSlice)

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts:      mountsFor(argv, inv.ExtraMounts),
		Init:        &initTrue,
		NetworkMode: "none",
	}
	if inv.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(inv.CPULimit * 1e9)
	}
	if inv.MemoryLimit > 0 {
		hostCfg.Memory = inv.MemoryLimit
	}
	containerCfg := &container.Config{
		Image:  inv.Image,
		Cmd:    argv,
		Env:    envSlice,
		Labels: map[string]string{"extmetrics": "true"},
	}
	if inv.UserID != "" {
		containerCfg.User = inv.UserID
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return fail(fmt.Errorf("creating container: %w", err))
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return fail(fmt.Errorf("starting container: %w", err))
	}
	log.Debug("container started", zap.String("id", containerID), zap.String("image", inv.Image))

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if inv.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	o := &external.Outcome{ExitCode: -1}
	waitResult := cli.ContainerWait(waitCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
wait:
	for {
		select {
		case err := <-waitResult.Error:
			if err == nil {
				continue
			}
			log.Warn("container wait ended early, killing", zap.String("id", containerID), zap.Error(err))
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			o.Signal = "killed"
			break wait
		case status := <-waitResult.Result:
			o.Exited = true
			o.ExitCode = int(status.StatusCode)
			break wait
		}
	}

	var stdout, stderr bytes.Buffer
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		log.Warn("reading container logs", zap.String("id", containerID), zap.Error(err))
	} else {
		if _, err := stdcopy.StdCopy(&stdout, &stderr, logReader); err != nil {
			log.Warn("demultiplexing container logs", zap.String("id", containerID), zap.Error(err))
		}
		logReader.Close()
	}
	o.Stdout = stdout.Bytes()
	o.Stderr = stderr.Bytes()
	o.Duration = time.Since(start)
	return o
}

// mountsFor bind-mounts the parent directory of every path flag value
// read-only at the same location, followed by extra.
func mountsFor(argv []string, extra []Mount) []mount.Mount {
	seen := map[string]bool{}
	var mounts []mount.Mount
	for i := 0; i < len(argv)-1; i++ {
		if !pathFlags[argv[i]] {
			continue
		}
		dir, err := filepath.Abs(filepath.Dir(argv[i+1]))
		if err != nil || seen[dir] {
			continue
		}
		seen[dir] = true
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   dir,
			Target:   dir,
			ReadOnly: true,
		})
	}
	for _, m := range extra {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	return mounts
}
