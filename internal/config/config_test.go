package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	for _, key := range []string{
		"QUICKCLAW_ENV_FILE", "QUICKCLAW_ROOT", "QUICKCLAW_HOME", "QUICKCLAW_OPENCLAW_STATE_DIR",
		"OPENCLAW_STATE_DIR", "QUICKCLAW_DASHBOARD_PORT", "DASHBOARD_PORT", "QUICKCLAW_GATEWAY_PORT",
		"QUICKCLAW_GATEWAY_START_SETTLE",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	return tmp
}

func TestLoadDefaultsToOpenclawStateUnderRoot(t *testing.T) {
	tmp := isolateEnv(t)
	root := filepath.Join(tmp, "drive")
	t.Setenv("QUICKCLAW_ROOT", root)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Root != root {
		t.Fatalf("expected root %q, got %q", root, cfg.Root)
	}
	if cfg.StateDir != filepath.Join(root, "openclaw-state") {
		t.Fatalf("unexpected state dir %q", cfg.StateDir)
	}
	if cfg.Home != tmp {
		t.Fatalf("expected home %q, got %q", tmp, cfg.Home)
	}
	if cfg.Gateway.Port != 18789 || cfg.Gateway.LegacyPort != 5000 {
		t.Fatalf("unexpected gateway ports %+v", cfg.Gateway)
	}
	if cfg.Gateway.StartSettle != 5*time.Second {
		t.Fatalf("unexpected start settle %v", cfg.Gateway.StartSettle)
	}
	if cfg.GatewayPIDPath() != filepath.Join(root, ".pids", "gateway.pid") {
		t.Fatalf("unexpected pid path %q", cfg.GatewayPIDPath())
	}
}

func TestLoadPrefersOpenclawHomeWhenPresent(t *testing.T) {
	tmp := isolateEnv(t)
	root := filepath.Join(tmp, "drive")
	if err := os.MkdirAll(filepath.Join(root, "openclaw-home"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("QUICKCLAW_ROOT", root)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != filepath.Join(root, "openclaw-home") {
		t.Fatalf("expected openclaw-home state dir, got %q", cfg.StateDir)
	}
}

func TestLoadHonoursUnprefixedCompatibilityVars(t *testing.T) {
	tmp := isolateEnv(t)
	t.Setenv("QUICKCLAW_ROOT", tmp)
	t.Setenv("OPENCLAW_STATE_DIR", "~/state")
	t.Setenv("DASHBOARD_PORT", "4100")
	t.Setenv("QUICKCLAW_GATEWAY_START_SETTLE", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != filepath.Join(tmp, "state") {
		t.Fatalf("expected expanded state dir, got %q", cfg.StateDir)
	}
	if cfg.DashboardPort != 4100 {
		t.Fatalf("expected dashboard port 4100, got %d", cfg.DashboardPort)
	}
	if cfg.Gateway.StartSettle != 250*time.Millisecond {
		t.Fatalf("expected start settle override, got %v", cfg.Gateway.StartSettle)
	}
}

func TestWriteJSONAndReadJSONMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	if err := WriteJSON(path, map[string]any{"b": 1, "a": "x"}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	m, err := ReadJSONMap(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if m["a"] != "x" {
		t.Fatalf("unexpected doc %#v", m)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	if _, err := ReadJSONMap(path); err == nil {
		t.Fatal("expected parse error for corrupt file")
	}
	var out map[string]any
	if ReadJSON(path, &out) {
		t.Fatal("expected ReadJSON to report failure on corrupt file")
	}
}
