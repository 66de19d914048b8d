// Package runner executes the gateway CLI and other helper commands with
// bounded timeouts and a merged environment.
package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultTimeout applies when a Cmd has no timeout of its own.
const DefaultTimeout = 15 * time.Second

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// Cmd is one fire-and-wait invocation.
type Cmd struct {
	Name    string
	Args    []string
	Env     map[string]string
	Dir     string
	Timeout time.Duration
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured outcome of a Cmd. Run never returns an error;
// failures are reported through OK, ExitCode and Err.
type Result struct {
	OK       bool   `json:"ok"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	TimedOut bool   `json:"timedOut,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Output is trimmed stdout, falling back to stderr when stdout is empty.
func (r Result) Output() string {
	if out := strings.TrimSpace(r.Stdout); out != "" {
		return out
	}
	return strings.TrimSpace(r.Stderr)
}

// Combined joins both streams for pattern matching.
func (r Result) Combined() string {
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// Runner carries the environment layers shared by every invocation.
type Runner struct {
	BaseEnv    []string
	ProfileEnv map[string]string
	Dir        string
	PathPrefix string
}

// New returns a Runner that puts the node toolchain first on PATH, so the
// gateway's own child processes resolve the same node the CLI runs under.
func New(profileEnv map[string]string, dir string) *Runner {
	return &Runner{
		BaseEnv:    os.Environ(),
		ProfileEnv: profileEnv,
		Dir:        dir,
		PathPrefix: NodeBinDir(),
	}
}

// NodeBinDir is the directory holding the node binary, or "" when node is
// not on PATH.
func NodeBinDir() string {
	p, err := lookPath("node")
	if err != nil {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return filepath.Dir(p)
}

// Environ merges base env, profile vars and caller overrides; later layers win.
func (r *Runner) Environ(overrides map[string]string) []string {
	env := MergeEnv(r.BaseEnv, r.ProfileEnv, overrides)
	if r.PathPrefix == "" {
		return env
	}
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + r.PathPrefix + string(os.PathListSeparator) + strings.TrimPrefix(kv, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+r.PathPrefix)
}

// Run executes c and waits for it, up to its timeout.
func (r *Runner) Run(ctx context.Context, c Cmd) Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := commandContext(ctx, c.Name, c.Args...)
	cmd.Env = r.Environ(c.Env)
	cmd.Dir = r.workDir(c.Dir)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		OK:     err == nil,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		res.Err = err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.TimedOut = true
			res.Err = "timed out after " + timeout.String()
		}
		slog.Debug("command failed", "cmd", c.String(), "exit", res.ExitCode, "error", res.Err)
	}
	return res
}

func (r *Runner) workDir(dir string) string {
	if dir == "" {
		dir = r.Dir
	}
	if dir == "" {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

// MergeEnv overlays maps onto a KEY=VALUE list. Keys keep their original
// position; new keys are appended in sorted order per layer.
func MergeEnv(base []string, layers ...map[string]string) []string {
	out := make([]string, 0, len(base)+8)
	idx := make(map[string]int, len(base))
	set := func(k, kv string) {
		if i, ok := idx[k]; ok {
			out[i] = kv
			return
		}
		idx[k] = len(out)
		out = append(out, kv)
	}
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if k == "" {
			continue
		}
		set(k, kv)
	}
	for _, layer := range layers {
		keys := make([]string, 0, len(layer))
		for k := range layer {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			set(k, k+"="+layer[k])
		}
	}
	return out
}

// CleanOutput drops node runtime warnings and banner lines from CLI output.
func CleanOutput(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		switch {
		case strings.Contains(line, "ExperimentalWarning"),
			strings.Contains(line, "🦞"),
			strings.Contains(line, "(Use `node"),
			strings.Contains(line, "OpenAI-compatible"):
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
