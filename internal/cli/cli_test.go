package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/lifecycle"
	"github.com/quickclaw/quickclaw/internal/onboarding"
	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/runner"
)

type fakeCommands struct{}

func (fakeCommands) Run(context.Context, runner.Cmd) runner.Result {
	return runner.Result{OK: true}
}
func (fakeCommands) Spawn(runner.SpawnSpec) (int, error)        { return 4242, nil }
func (fakeCommands) PIDsOnPort(context.Context, int) []int      { return nil }
func (fakeCommands) PIDsMatching(context.Context, string) []int { return nil }

type fakeProber struct{ running bool }

func (p fakeProber) Probe(context.Context) probe.State {
	return probe.State{Running: p.running, Signals: probe.Signals{Ports: map[int]bool{18789: p.running, 5000: false}}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmp := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Root = filepath.Join(tmp, "root")
	cfg.Home = filepath.Join(tmp, "home")
	cfg.StateDir = filepath.Join(cfg.Root, "openclaw-state")
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func buildTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(cfg, runner.CLI{Bin: "openclaw"}, wiring{
		commands: func(map[string]string) lifecycle.Commands { return fakeCommands{} },
		probe:    func(probe.CommandRunner) statusProber { return fakeProber{} },
		telegram: &channels.Telegram{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

// useTestApp points every command at a fresh app over cfg.
func useTestApp(t *testing.T, cfg *config.Config) {
	t.Helper()
	orig := loadAppFn
	t.Cleanup(func() { loadAppFn = orig })
	loadAppFn = func() (*app, error) { return buildTestApp(t, cfg), nil }
}

func runRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	profileFlag, jsonOutput = "", false
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	rootCmd.SetArgs(nil)
	return strings.TrimSpace(buf.String()), err
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := runRootCommand(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil || got["version"] != version {
		t.Fatalf("unexpected version output %q (%v)", out, err)
	}
}

func TestConfigSetGetUnsetCommands(t *testing.T) {
	cfg := testConfig(t)
	useTestApp(t, cfg)

	if _, err := runRootCommand(t, "config", "set", "gateway.port", "18888"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	out, err := runRootCommand(t, "config", "get", "gateway.port")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if out != "18888" {
		t.Fatalf("expected 18888, got %q", out)
	}

	if _, err := runRootCommand(t, "config", "set", "agents.list[0].name", "claw"); err != nil {
		t.Fatalf("config set list failed: %v", err)
	}
	doc, _ := reconcile.Read(filepath.Join(cfg.StateDir, "openclaw.json"))
	if v, _ := reconcile.GetPath(doc, "agents.list[0].name"); v != "claw" {
		t.Fatalf("expected list entry set, got %v", v)
	}

	if _, err := runRootCommand(t, "config", "unset", "gateway.port"); err != nil {
		t.Fatalf("config unset failed: %v", err)
	}
	if _, err := runRootCommand(t, "config", "get", "gateway.port"); err == nil {
		t.Fatal("expected get of unset path to fail")
	}
	if _, err := runRootCommand(t, "config", "set", "a..b", "1"); err == nil {
		t.Fatal("expected invalid path to fail")
	}
}

func TestProfileCreateUseList(t *testing.T) {
	cfg := testConfig(t)
	useTestApp(t, cfg)

	out, err := runRootCommand(t, "profile", "create", "Work", "Bot", "--json")
	if err != nil {
		t.Fatalf("profile create: %v", err)
	}
	var created struct{ ID, Name string }
	if err := json.Unmarshal([]byte(out), &created); err != nil || created.Name != "Work Bot" || !strings.HasPrefix(created.ID, "p-") {
		t.Fatalf("unexpected create output %q (%v)", out, err)
	}
	if _, err := runRootCommand(t, "profile", "use", created.ID); err != nil {
		t.Fatalf("profile use: %v", err)
	}
	out, err = runRootCommand(t, "profile", "list")
	if err != nil {
		t.Fatalf("profile list: %v", err)
	}
	if !strings.Contains(out, "* "+created.ID) {
		t.Fatalf("expected new profile active, got %q", out)
	}
	if _, err := runRootCommand(t, "profile", "use", "p-missing"); err == nil {
		t.Fatal("expected unknown profile to fail")
	}
}

func TestTelegramLockCommand(t *testing.T) {
	cfg := testConfig(t)
	useTestApp(t, cfg)

	if _, err := runRootCommand(t, "telegram", "lock", "abc"); err == nil {
		t.Fatal("expected non-numeric id to fail")
	}
	out, err := runRootCommand(t, "telegram", "lock", "555")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !strings.Contains(out, "Bot locked") {
		t.Fatalf("unexpected output %q", out)
	}
	if got := reconcile.ReadAllowlist(cfg.StateDir).AllowFrom; len(got) != 1 || got[0] != "555" {
		t.Fatalf("unexpected allowlist %v", got)
	}
}

func TestTelegramActivateRequiresSavedToken(t *testing.T) {
	useTestApp(t, testConfig(t))
	_, err := runRootCommand(t, "telegram", "activate")
	if err == nil || !strings.Contains(err.Error(), "save a Telegram bot token first") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestDoctorCommand(t *testing.T) {
	useTestApp(t, testConfig(t))
	out, err := runRootCommand(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v (%s)", err, out)
	}
	if !strings.Contains(out, "root_dir:") || !strings.Contains(out, "gateway_running: gateway is not running") {
		t.Fatalf("unexpected doctor output %q", out)
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	useTestApp(t, testConfig(t))
	out, err := runRootCommand(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if out != "No lifecycle runs recorded." {
		t.Fatalf("unexpected history output %q", out)
	}
}

func TestServiceInstallCommand(t *testing.T) {
	origOS, origFn := serviceOS, serviceInstallFn
	t.Cleanup(func() { serviceOS, serviceInstallFn = origOS, origFn })
	t.Setenv("QUICKCLAW_ROOT", t.TempDir())
	t.Setenv("QUICKCLAW_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	serviceOS = "darwin"
	if _, err := runRootCommand(t, "service", "install"); err == nil {
		t.Fatal("expected non-linux install to fail")
	}

	serviceOS = "linux"
	var got onboarding.ServiceOptions
	serviceInstallFn = func(opts onboarding.ServiceOptions) (*onboarding.ServiceResult, error) {
		got = opts
		return &onboarding.ServiceResult{UnitPath: "/tmp/quickclaw.service", EnvPath: "/tmp/env"}, nil
	}
	out, err := runRootCommand(t, "service", "install", "--binary", "/opt/quickclaw", "--enable=false")
	if err != nil {
		t.Fatalf("service install: %v", err)
	}
	if got.BinaryPath != "/opt/quickclaw" || got.Enable || got.Port != 3000 {
		t.Fatalf("unexpected options %+v", got)
	}
	if !strings.Contains(out, "Unit: /tmp/quickclaw.service") {
		t.Fatalf("unexpected output %q", out)
	}
}

func apiRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: invalid JSON %q", method, path, rec.Body.String())
	}
	return rec, out
}

func TestAPIRoutes(t *testing.T) {
	cfg := testConfig(t)
	a := buildTestApp(t, cfg)
	t.Cleanup(func() { a.Close() })
	h := (&api{app: a}).routes()

	rec, out := apiRequest(t, h, http.MethodGet, "/api/ping", "")
	if rec.Code != http.StatusOK || out["ok"] != true {
		t.Fatalf("ping: %d %v", rec.Code, out)
	}

	rec, out = apiRequest(t, h, http.MethodGet, "/api/gateway/status", "")
	if rec.Code != http.StatusOK || out["running"] != false || out["profileId"] != "default" {
		t.Fatalf("status: %d %v", rec.Code, out)
	}

	rec, out = apiRequest(t, h, http.MethodGet, "/api/gateway/status?profile=p-nope", "")
	if rec.Code != http.StatusBadRequest || out["ok"] != false {
		t.Fatalf("unknown profile: %d %v", rec.Code, out)
	}

	rec, out = apiRequest(t, h, http.MethodPost, "/api/chat/save-key", `{"provider":"telegram","key":"nope"}`)
	if rec.Code != http.StatusBadRequest || out["ok"] != false || !strings.Contains(out["error"].(string), "Invalid Telegram bot token") {
		t.Fatalf("invalid token: %d %v", rec.Code, out)
	}

	rec, _ = apiRequest(t, h, http.MethodPost, "/api/chat/save-key", `{"provider":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: %d", rec.Code)
	}

	rec, out = apiRequest(t, h, http.MethodPost, "/api/chat/telegram-activate", `{"freshInstall":true}`)
	if rec.Code != http.StatusBadRequest || out["ok"] != false {
		t.Fatalf("activate without token: %d %v", rec.Code, out)
	}

	rec, out = apiRequest(t, h, http.MethodPost, "/api/chat/telegram-lock", `{"userId":555}`)
	if rec.Code != http.StatusOK || out["ok"] != true || out["userId"] != "555" {
		t.Fatalf("lock: %d %v", rec.Code, out)
	}

	rec, out = apiRequest(t, h, http.MethodGet, "/api/chat/telegram-pairing-status", "")
	if rec.Code != http.StatusOK || out["hasPaired"] != true {
		t.Fatalf("pairing status: %d %v", rec.Code, out)
	}

	rec, out = apiRequest(t, h, http.MethodPost, "/api/chat/telegram-diagnose", "")
	if rec.Code != http.StatusOK || out["botError"] != "No token found in any config location" {
		t.Fatalf("diagnose: %d %v", rec.Code, out)
	}

	rec, out = apiRequest(t, h, http.MethodGet, "/api/history", "")
	if rec.Code != http.StatusOK || len(out["runs"].([]any)) != 0 {
		t.Fatalf("history: %d %v", rec.Code, out)
	}

	rec, _ = apiRequest(t, h, http.MethodGet, "/api/history/run-unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown run: %d", rec.Code)
	}
}

func TestAPIStopReportsSteps(t *testing.T) {
	a := buildTestApp(t, testConfig(t))
	t.Cleanup(func() { a.Close() })
	h := (&api{app: a}).routes()

	rec, out := apiRequest(t, h, http.MethodPost, "/api/gateway/stop", "")
	if rec.Code != http.StatusOK || out["ok"] != true {
		t.Fatalf("stop: %d %v", rec.Code, out)
	}
	steps := out["steps"].([]any)
	if len(steps) == 0 || steps[0].(map[string]any)["step"] != "stop" {
		t.Fatalf("unexpected steps %v", steps)
	}
	rec, out = apiRequest(t, h, http.MethodGet, "/api/history", "")
	if rec.Code != http.StatusOK || len(out["runs"].([]any)) != 1 {
		t.Fatalf("expected the stop run recorded: %v", out)
	}
}

func TestDashboardPageServed(t *testing.T) {
	a := buildTestApp(t, testConfig(t))
	t.Cleanup(func() { a.Close() })
	rec := httptest.NewRecorder()
	(&api{app: a}).routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "QuickClaw Dashboard") {
		t.Fatalf("unexpected page response %d", rec.Code)
	}
}
