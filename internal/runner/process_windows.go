//go:build windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Kill terminates pid.
func Kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// Terminate has no graceful variant on Windows.
func Terminate(pid int) error {
	return Kill(pid)
}

// IsProcessAlive reports whether pid can be opened.
func IsProcessAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
