package onboarding

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderUserUnit(t *testing.T) {
	unit := renderUserUnit(ServiceOptions{
		BinaryPath: "/usr/local/bin/quickclaw",
		Root:       "/srv/quickclaw",
		Host:       "0.0.0.0",
		Port:       3100,
		Version:    "1.2.3",
	})
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/quickclaw serve --host 0.0.0.0 --port 3100") {
		t.Fatalf("unexpected ExecStart in unit: %s", unit)
	}
	if !strings.Contains(unit, "WorkingDirectory=/srv/quickclaw") {
		t.Fatalf("missing working directory: %s", unit)
	}
	if !strings.Contains(unit, "WantedBy=default.target") {
		t.Fatalf("expected a user unit target: %s", unit)
	}
}

func TestRenderUserUnitQuotesBinaryPath(t *testing.T) {
	unit := renderUserUnit(ServiceOptions{BinaryPath: "/opt/quick claw/quickclaw", Host: "127.0.0.1", Port: 3000})
	if !strings.Contains(unit, `ExecStart="/opt/quick claw/quickclaw" serve`) {
		t.Fatalf("expected quoted binary path: %s", unit)
	}
}

func TestRenderEnvFile(t *testing.T) {
	env := renderEnvFile(ServiceOptions{Root: "/srv/quickclaw", Host: "127.0.0.1", Port: 3000})
	for _, want := range []string{"QUICKCLAW_ROOT=/srv/quickclaw", "QUICKCLAW_DASHBOARD_PORT=3000"} {
		if !strings.Contains(env, want) {
			t.Fatalf("missing %q in env file: %s", want, env)
		}
	}
}

func TestInstallUserServiceWritesFiles(t *testing.T) {
	home := t.TempDir()
	res, err := InstallUserService(ServiceOptions{Home: home, BinaryPath: "/usr/local/bin/quickclaw", Port: 3000})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.EnvKept || res.Enabled {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.UnitPath != filepath.Join(home, ".config", "systemd", "user", ServiceName) {
		t.Fatalf("unexpected unit path %s", res.UnitPath)
	}
	for _, p := range []string{res.UnitPath, res.EnvPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected file to exist: %s (%v)", p, err)
		}
	}
}

func TestInstallUserServiceKeepsExistingEnvFile(t *testing.T) {
	home := t.TempDir()
	envPath := filepath.Join(home, ".config", "quickclaw", "env")
	if err := os.MkdirAll(filepath.Dir(envPath), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envPath, []byte("QUICKCLAW_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := InstallUserService(ServiceOptions{Home: home, BinaryPath: "/usr/local/bin/quickclaw", Port: 3000})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !res.EnvKept {
		t.Fatal("expected env file to be kept")
	}
	data, _ := os.ReadFile(envPath)
	if string(data) != "QUICKCLAW_LOG_LEVEL=debug\n" {
		t.Fatalf("env file was overwritten: %q", data)
	}
}

func TestInstallUserServiceEnable(t *testing.T) {
	orig := runCommandFn
	t.Cleanup(func() { runCommandFn = orig })

	var calls []string
	runCommandFn = func(name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return nil, nil
	}
	res, err := InstallUserService(ServiceOptions{Home: t.TempDir(), BinaryPath: "/bin/quickclaw", Port: 3000, Enable: true})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !res.Enabled || len(calls) != 2 || calls[1] != "systemctl --user enable --now quickclaw.service" {
		t.Fatalf("unexpected enable flow %+v calls=%v", res, calls)
	}

	runCommandFn = func(string, ...string) ([]byte, error) {
		return []byte("Failed to connect to bus"), errors.New("exit status 1")
	}
	res, err = InstallUserService(ServiceOptions{Home: t.TempDir(), BinaryPath: "/bin/quickclaw", Port: 3000, Enable: true})
	if err == nil || res == nil || res.Enabled || !strings.Contains(res.Output, "Failed to connect to bus") {
		t.Fatalf("expected enable failure to be reported, got %+v err=%v", res, err)
	}
}

func TestInstallUserServiceValidatesOptions(t *testing.T) {
	if _, err := InstallUserService(ServiceOptions{Home: t.TempDir(), Port: 3000}); err == nil {
		t.Fatal("expected missing binary to fail")
	}
	if _, err := InstallUserService(ServiceOptions{Home: t.TempDir(), BinaryPath: "/bin/quickclaw"}); err == nil {
		t.Fatal("expected missing port to fail")
	}
}
