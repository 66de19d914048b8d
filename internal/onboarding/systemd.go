package onboarding

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var runCommandFn = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// ServiceName is the systemd user unit that keeps the dashboard running.
const ServiceName = "quickclaw.service"

type ServiceOptions struct {
	Home       string
	BinaryPath string
	Root       string
	Host       string
	Port       int
	Version    string
	// Enable runs systemctl --user daemon-reload and enable --now.
	Enable bool
}

type ServiceResult struct {
	UnitPath string `json:"unitPath"`
	EnvPath  string `json:"envPath"`
	EnvKept  bool   `json:"envKept"`
	Enabled  bool   `json:"enabled"`
	Output   string `json:"output,omitempty"`
}

// InstallUserService writes a systemd user unit that runs "quickclaw serve"
// and an env file the unit and LoadEnvFileCandidates both read. An existing
// env file is never overwritten.
func InstallUserService(opts ServiceOptions) (*ServiceResult, error) {
	if opts.BinaryPath == "" {
		return nil, fmt.Errorf("binary path is required")
	}
	if opts.Home == "" {
		return nil, fmt.Errorf("home directory is required")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("port must be > 0")
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	unitPath := filepath.Join(opts.Home, ".config", "systemd", "user", ServiceName)
	envPath := filepath.Join(opts.Home, ".config", "quickclaw", "env")
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(envPath), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(unitPath, []byte(renderUserUnit(opts)), 0o644); err != nil {
		return nil, err
	}

	res := &ServiceResult{UnitPath: unitPath, EnvPath: envPath}
	if _, err := os.Stat(envPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(envPath, []byte(renderEnvFile(opts)), 0o600); err != nil {
			return nil, err
		}
	} else {
		res.EnvKept = true
	}

	if opts.Enable {
		var out []string
		for _, args := range [][]string{
			{"--user", "daemon-reload"},
			{"--user", "enable", "--now", ServiceName},
		} {
			b, err := runCommandFn("systemctl", args...)
			out = append(out, strings.TrimSpace(string(b)))
			if err != nil {
				res.Output = strings.TrimSpace(strings.Join(out, "\n"))
				return res, fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
			}
		}
		res.Enabled = true
		res.Output = strings.TrimSpace(strings.Join(out, "\n"))
	}
	return res, nil
}

func renderUserUnit(opts ServiceOptions) string {
	exe := shellEscape(filepath.Clean(opts.BinaryPath))
	lines := []string{
		"[Unit]",
		fmt.Sprintf("Description=QuickClaw dashboard (v%s)", opts.Version),
		"After=network-online.target",
		"",
		"[Service]",
		fmt.Sprintf("ExecStart=%s serve --host %s --port %d", exe, opts.Host, opts.Port),
		"Restart=on-failure",
		"RestartSec=5",
		"EnvironmentFile=-%h/.config/quickclaw/env",
	}
	if opts.Root != "" {
		lines = append(lines, "WorkingDirectory="+shellEscape(filepath.Clean(opts.Root)))
	}
	lines = append(lines,
		"",
		"[Install]",
		"WantedBy=default.target",
		"",
	)
	return strings.Join(lines, "\n")
}

func renderEnvFile(opts ServiceOptions) string {
	lines := []string{
		"# QuickClaw runtime environment",
		"# Loaded via systemd EnvironmentFile",
	}
	if opts.Root != "" {
		lines = append(lines, "QUICKCLAW_ROOT="+opts.Root)
	}
	lines = append(lines,
		"QUICKCLAW_DASHBOARD_HOST="+opts.Host,
		"QUICKCLAW_DASHBOARD_PORT="+strconv.Itoa(opts.Port),
		"",
	)
	return strings.Join(lines, "\n")
}

func shellEscape(v string) string {
	if v == "" {
		return "''"
	}
	if strings.IndexFunc(v, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '\'' || r == '\\'
	}) == -1 {
		return v
	}
	return strconv.Quote(v)
}
