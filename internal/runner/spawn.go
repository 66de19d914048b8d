package runner

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// SpawnSpec describes a detached long-running process.
type SpawnSpec struct {
	Name    string
	Args    []string
	Env     map[string]string
	Dir     string
	LogPath string
	PIDPath string
}

// Spawn starts the process in its own session with stdout and stderr
// appended to LogPath, records its pid and returns without waiting.
func (r *Runner) Spawn(proc SpawnSpec) (int, error) {
	cmd := exec.Command(proc.Name, proc.Args...)
	cmd.Env = r.Environ(proc.Env)
	cmd.Dir = r.workDir(proc.Dir)
	detach(cmd)

	var logFile *os.File
	if proc.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(proc.LogPath), 0o700); err != nil {
			return 0, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(proc.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return 0, fmt.Errorf("start %s: %w", proc.Name, err)
	}
	// The child holds its own descriptor.
	if logFile != nil {
		logFile.Close()
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()

	if proc.PIDPath != "" {
		if err := WritePIDFile(proc.PIDPath, pid); err != nil {
			slog.Warn("write pid file failed", "path", proc.PIDPath, "error", err)
		}
	}
	slog.Info("spawned detached process", "cmd", proc.Name, "pid", pid, "log", proc.LogPath)
	return pid, nil
}

// WritePIDFile records pid at path.
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// ReadPIDFile returns the pid recorded at path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}
