//go:build unix

package external

import (
	"os/exec"
	"syscall"
)

// killGroup puts the child in its own process group and makes cancellation
// kill the whole group, so helpers the command forks die with it.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
