//go:build windows

package worker

import (
	"os/exec"
	"syscall"
)

// detach gives the worker subprocess its own process group so closing the
// client's console doesn't signal it, the Windows analogue of
// CREATE_NEW_PROCESS_GROUP used alongside DETACHED_PROCESS.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
