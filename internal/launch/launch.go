// Package launch starts the installed client as an independent process.
package launch

import (
	"fmt"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Detached starts a binary in its own process group and does not wait for it.
type Detached struct {
	// Args are passed to the started binary.
	Args []string
}

// Launch implements update.Launcher. The working directory is the binary's directory.
func (d Detached) Launch(path string) error {
	cmd := exec.Command(path, d.Args...)
	cmd.Dir = filepath.Dir(path)
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", path, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		log.Warnf("failed to release process %d: %v", pid, err)
	}

	log.WithFields(log.Fields{
		"component": "launch",
		"path":      path,
		"pid":       pid,
	}).Info("client started")
	return nil
}
