package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/runner"
	"github.com/quickclaw/quickclaw/internal/settings"
)

type fakeCommands struct {
	calls [][]string
	out   string
}

func (f *fakeCommands) Run(_ context.Context, c runner.Cmd) runner.Result {
	f.calls = append(f.calls, c.Args)
	return runner.Result{OK: true, Stdout: f.out}
}

type fakeProber struct{ running bool }

func (p fakeProber) Probe(context.Context) probe.State {
	return probe.State{Running: p.running, Signals: probe.Signals{Ports: map[int]bool{18789: p.running}}}
}

type fakeTelegram struct {
	tokens  []string
	info    channels.BotInfo
	err     error
	updates []channels.PendingUpdate
}

func (f *fakeTelegram) GetMe(_ context.Context, token string) (channels.BotInfo, error) {
	f.tokens = append(f.tokens, token)
	return f.info, f.err
}

func (f *fakeTelegram) PendingUpdates(context.Context, string, int) ([]channels.PendingUpdate, error) {
	return f.updates, nil
}

type harness struct {
	cfg  *config.Config
	cmds *fakeCommands
	tg   *fakeTelegram
	svc  *Service
}

func newHarness(t *testing.T, running bool) *harness {
	t.Helper()
	tmp := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Root = filepath.Join(tmp, "root")
	cfg.Home = filepath.Join(tmp, "home")
	cfg.StateDir = filepath.Join(cfg.Root, "openclaw-state")
	for _, dir := range []string{cfg.StateDir, cfg.Home} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			t.Fatal(err)
		}
	}
	h := &harness{cfg: cfg, cmds: &fakeCommands{}, tg: &fakeTelegram{}}
	h.svc = New(Deps{
		Config:   cfg,
		Settings: settings.NewStore(cfg.SettingsPath()),
		CLI:      runner.CLI{Bin: "npx", Prefix: []string{"openclaw"}},
		Commands: func(map[string]string) Commands { return h.cmds },
		Prober:   func(Commands) Prober { return fakeProber{running: running} },
		Telegram: h.tg,
	})
	return h
}

func (h *harness) authoritative() string {
	return filepath.Join(h.cfg.StateDir, "openclaw.json")
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func findCheck(r DoctorReport, name string) (DoctorCheck, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return DoctorCheck{}, false
}

func TestDoctorFreshSetupHasNoFailures(t *testing.T) {
	h := newHarness(t, false)
	report := h.svc.Doctor(context.Background(), "", DoctorOptions{})
	if report.HasFailures() {
		t.Fatalf("unexpected failures: %+v", report.Checks)
	}
	if c, ok := findCheck(report, "gateway_running"); !ok || c.Status != DoctorWarn {
		t.Fatalf("expected gateway_running warn, got %+v", c)
	}
	if c, ok := findCheck(report, "config_state"); !ok || c.Status != DoctorWarn {
		t.Fatalf("expected missing authoritative config warning, got %+v", c)
	}
	if c, _ := findCheck(report, "openclaw_cli"); c.Status != DoctorWarn || !strings.Contains(c.Message, "npx openclaw") {
		t.Fatalf("expected npx fallback warning, got %+v", c)
	}
}

func TestDoctorFlagsCorruptConfig(t *testing.T) {
	h := newHarness(t, true)
	writeFile(t, h.authoritative(), "{not json")
	report := h.svc.Doctor(context.Background(), "", DoctorOptions{})
	if !report.HasFailures() {
		t.Fatalf("expected failure for corrupt config: %+v", report.Checks)
	}
	if c, _ := findCheck(report, "config_state"); c.Status != DoctorFail {
		t.Fatalf("expected config_state fail, got %+v", c)
	}
}

func TestDoctorFixSetsLocalMode(t *testing.T) {
	h := newHarness(t, true)
	writeFile(t, h.authoritative(), `{"gateway":{"mode":"remote"}}`)

	report := h.svc.Doctor(context.Background(), "", DoctorOptions{})
	if c, _ := findCheck(report, "gateway_mode"); c.Status != DoctorWarn {
		t.Fatalf("expected gateway_mode warn before fix, got %+v", c)
	}
	report = h.svc.Doctor(context.Background(), "", DoctorOptions{Fix: true})
	if c, _ := findCheck(report, "fix_local_mode"); c.Status != DoctorPass {
		t.Fatalf("expected fix to pass, got %+v", c)
	}
	if c, _ := findCheck(report, "gateway_mode"); c.Status != DoctorPass {
		t.Fatalf("expected gateway_mode pass after fix, got %+v", c)
	}
	doc, _ := reconcile.Read(h.authoritative())
	if reconcile.Lookup(doc, "gateway", "mode") != "local" {
		t.Fatalf("expected fix persisted, got %v", doc)
	}
}

func TestIsLoopbackHost(t *testing.T) {
	for host, want := range map[string]bool{"127.0.0.1": true, "localhost": true, "::1": true, "0.0.0.0": false, "": false, "10.0.0.2": false} {
		if got := isLoopbackHost(host); got != want {
			t.Fatalf("isLoopbackHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestDiagnoseHealthyBotWithBacklog(t *testing.T) {
	h := newHarness(t, true)
	writeFile(t, h.authoritative(), `{"channels":{"telegram":{"enabled":true,"botToken":"123:SECRETTOKEN","dmPolicy":"open"}},"plugins":{"entries":{"telegram":{"enabled":true}}}}`)
	var log strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&log, "line %d\n\n", i)
	}
	writeFile(t, h.cfg.GatewayLogPath(), log.String())
	h.tg.info = channels.BotInfo{ID: 7, Username: "claw_bot"}
	h.tg.updates = []channels.PendingUpdate{
		{UpdateID: 1, From: "Ann", Text: "hi"},
		{UpdateID: 2, From: "Bob", Text: "hello?", Date: time.Unix(1700000000, 0)},
	}

	rep := h.svc.Diagnose(context.Background(), "")
	if rep.BotInfo == nil || rep.BotInfo.Username != "claw_bot" || rep.BotError != "" {
		t.Fatalf("unexpected bot info %+v err=%q", rep.BotInfo, rep.BotError)
	}
	if len(h.tg.tokens) != 1 || h.tg.tokens[0] != "123:SECRETTOKEN" {
		t.Fatalf("expected token from openclaw.json, got %v", h.tg.tokens)
	}
	if !rep.TokenLocations.OpenclawJSON || !rep.TokenLocations.TelegramEnabled || !rep.TokenLocations.PluginEnabled {
		t.Fatalf("unexpected token locations %+v", rep.TokenLocations)
	}
	if rep.CriticalIssue != "" {
		t.Fatalf("unexpected critical issue %q", rep.CriticalIssue)
	}
	if rep.PendingUpdates != 2 || rep.LastUpdate == nil || rep.LastUpdate.From != "Bob" {
		t.Fatalf("unexpected pending updates %d %+v", rep.PendingUpdates, rep.LastUpdate)
	}
	if strings.Contains(rep.RecentLogs, "line 8\n") || !strings.Contains(rep.RecentLogs, "line 9") || !strings.HasSuffix(rep.RecentLogs, "line 20") {
		t.Fatalf("expected last 12 lines, got %q", rep.RecentLogs)
	}
	if rep.ConfigSummary == nil || rep.ConfigSummary.TokenPreview == "123:SECRETTOKEN" || !rep.ConfigSummary.HasToken {
		t.Fatalf("expected masked summary, got %+v", rep.ConfigSummary)
	}
	if len(rep.Suggestions) != 1 || !strings.Contains(rep.Suggestions[0], "2 unprocessed") {
		t.Fatalf("unexpected suggestions %v", rep.Suggestions)
	}
}

func TestDiagnoseWithoutToken(t *testing.T) {
	h := newHarness(t, false)
	rep := h.svc.Diagnose(context.Background(), "")
	if rep.BotError != "No token found in any config location" {
		t.Fatalf("unexpected bot error %q", rep.BotError)
	}
	if len(h.tg.tokens) != 0 {
		t.Fatalf("telegram must not be called without a token")
	}
	if rep.CriticalIssue == "" || rep.RecentLogs != "No gateway logs found" {
		t.Fatalf("unexpected report %+v", rep)
	}
	joined := strings.Join(rep.Suggestions, "\n")
	if !strings.Contains(joined, "NOT running") || !strings.Contains(joined, "Token missing from openclaw.json") {
		t.Fatalf("unexpected suggestions %v", rep.Suggestions)
	}
}

func TestDiagnoseReportsDisabledChannelAndInvalidToken(t *testing.T) {
	h := newHarness(t, true)
	writeFile(t, h.authoritative(), `{"channels":{"telegram":{"enabled":false,"botToken":"1:x"}}}`)
	h.tg.err = errors.New("telegram getMe: Unauthorized")

	rep := h.svc.Diagnose(context.Background(), "")
	if !strings.Contains(rep.CriticalIssue, "disabled") {
		t.Fatalf("expected disabled critical issue, got %q", rep.CriticalIssue)
	}
	joined := strings.Join(rep.Suggestions, "\n")
	if !strings.Contains(joined, "CRITICAL") || !strings.Contains(joined, "INVALID") {
		t.Fatalf("unexpected suggestions %v", rep.Suggestions)
	}
}

func TestDiagnosePrefersSettingsToken(t *testing.T) {
	h := newHarness(t, true)
	if _, err := h.svc.settings.Update(map[string]any{"telegramBotToken": "9:fromsettings"}); err != nil {
		t.Fatal(err)
	}
	writeFile(t, h.authoritative(), `{"channels":{"telegram":{"enabled":true,"botToken":"1:x"}}}`)
	h.svc.Diagnose(context.Background(), "")
	if len(h.tg.tokens) != 1 || h.tg.tokens[0] != "9:fromsettings" {
		t.Fatalf("expected settings token first, got %v", h.tg.tokens)
	}
}

func TestDiagnosticsDump(t *testing.T) {
	h := newHarness(t, true)
	h.cmds.out = "(node:1) ExperimentalWarning: x\nTelegram: enabled"
	writeFile(t, h.authoritative(), `{"channels":{"telegram":{"enabled":true,"dmPolicy":"allowlist"}}}`)
	real := filepath.Join(filepath.Dir(h.cfg.Home), "real-openclaw")
	if err := os.MkdirAll(real, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(real, filepath.Join(h.cfg.Home, ".openclaw")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	writeFile(t, filepath.Join(h.cfg.Home, "Library", "LaunchAgents", "ai.openclaw.gateway.plist"), "<key>OPENCLAW_STATE_DIR</key>")

	rep := h.svc.Diagnostics(context.Background(), "")
	if !rep.Symlink.IsSymlink || rep.Symlink.Target != real {
		t.Fatalf("unexpected symlink info %+v", rep.Symlink)
	}
	if rep.ChannelsStatus != "Telegram: enabled" {
		t.Fatalf("expected cleaned channels status, got %q", rep.ChannelsStatus)
	}
	if len(h.cmds.calls) != 1 || strings.Join(h.cmds.calls[0], " ") != "openclaw channels status" {
		t.Fatalf("unexpected commands %v", h.cmds.calls)
	}
	if !rep.Plist.Exists || !rep.Plist.HasStatePath || rep.Plist.HasConfigPath {
		t.Fatalf("unexpected plist info %+v", rep.Plist)
	}
	var found bool
	for _, c := range rep.Configs {
		if c.Path == h.authoritative() {
			found = c.Exists && c.Telegram != nil && c.Telegram.DMPolicy == reconcile.DMPolicyAllowlist
		}
	}
	if !found {
		t.Fatalf("authoritative config not summarized: %+v", rep.Configs)
	}
	if rep.EnvVars["OPENCLAW_CONFIG_PATH"] != h.authoritative() {
		t.Fatalf("unexpected env vars %v", rep.EnvVars)
	}
}
