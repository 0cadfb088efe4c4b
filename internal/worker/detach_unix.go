//go:build !windows

package worker

import (
	"os/exec"
	"syscall"
)

// detach puts the worker subprocess in its own session so it survives the
// client process exiting, mirroring subprocess.Popen(start_new_session=True)
// in the original start_daemon().
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
