//go:build !windows

package worker

import (
	"os/exec"
	"syscall"
)

// detach moves the worker into its own process group so the host
// terminating its group does not take the worker with it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
