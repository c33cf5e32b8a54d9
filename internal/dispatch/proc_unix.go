//go:build unix

package dispatch

import (
	"os/exec"
	"syscall"
)

// killProcessGroup makes cancellation kill the whole process group, so tool
// processes started by the batch script do not keep output pipes open.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
