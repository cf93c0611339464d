package cmd

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/signalnine/extmetrics/internal/config"
	"github.com/signalnine/extmetrics/internal/docker"
	"github.com/signalnine/extmetrics/internal/external"
	"github.com/signalnine/extmetrics/internal/logging"
)

func newLogger(level string, development bool) (*zap.Logger, error) {
	if flagLogLvl != "" {
		level = flagLogLvl
	}
	if level == "" {
		level = "info"
	}
	logger, err := logging.New(logging.Config{
		Level:       level,
		Development: development || flagLogDev,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// buildInvoker picks the launcher for the external metric.
func buildInvoker(e config.External, logger *zap.Logger) (external.Invoker, error) {
	switch e.Launcher {
	case "", config.LauncherProcess:
		env := os.Environ()
		for k, v := range e.Env {
			env = append(env, k+"="+v)
		}
		return &external.ProcessInvoker{Env: env, Timeout: e.Timeout(), Logger: logger}, nil
	case config.LauncherDocker:
		if e.Image == "" {
			return nil, fmt.Errorf("the docker launcher needs an image")
		}
		return &docker.Invoker{
			Image:   e.Image,
			Env:     e.Env,
			Timeout: e.Timeout(),
			UserID:  fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
			Logger:  logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown launcher %q", e.Launcher)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
