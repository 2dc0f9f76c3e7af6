//go:build unix

package launch

import (
	"os/exec"
	"syscall"
)

// setProcAttr runs the client in a new session so it outlives the launcher.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
