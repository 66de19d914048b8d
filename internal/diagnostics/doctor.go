package diagnostics

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/reconcile"
)

type DoctorStatus string

const (
	DoctorPass DoctorStatus = "pass"
	DoctorWarn DoctorStatus = "warn"
	DoctorFail DoctorStatus = "fail"
)

type DoctorCheck struct {
	Name    string       `json:"name"`
	Status  DoctorStatus `json:"status"`
	Message string       `json:"message"`
}

type DoctorReport struct {
	ProfileID string        `json:"profileId"`
	Checks    []DoctorCheck `json:"checks"`
}

type DoctorOptions struct {
	// Fix sets gateway.mode=local in every existing config before checking.
	Fix bool
}

func (r DoctorReport) HasFailures() bool {
	for _, c := range r.Checks {
		if c.Status == DoctorFail {
			return true
		}
	}
	return false
}

func (r *DoctorReport) add(name string, status DoctorStatus, format string, args ...any) {
	r.Checks = append(r.Checks, DoctorCheck{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

// Doctor runs the local setup checklist for a profile.
func (s *Service) Doctor(ctx context.Context, profileID string, opts DoctorOptions) DoctorReport {
	t := s.resolve(profileID)
	report := DoctorReport{ProfileID: t.id, Checks: make([]DoctorCheck, 0, 12)}

	if dirExists(s.cfg.Root) {
		report.add("root_dir", DoctorPass, "root: %s", s.cfg.Root)
	} else {
		report.add("root_dir", DoctorFail, "root directory %s does not exist", s.cfg.Root)
	}

	if filepath.IsAbs(s.cli.Bin) && fileExists(s.cli.Bin) {
		report.add("openclaw_cli", DoctorPass, "local openclaw: %s", s.cli.Bin)
	} else {
		report.add("openclaw_cli", DoctorWarn, "local openclaw not installed, falling back to %s", s.cli.String())
	}

	if dirExists(s.cfg.StateDir) {
		report.add("state_dir", DoctorPass, "state dir: %s", s.cfg.StateDir)
	} else {
		report.add("state_dir", DoctorWarn, "state dir %s does not exist yet (created on first activation)", s.cfg.StateDir)
	}

	if opts.Fix {
		res := reconcile.Apply(t.locs, reconcile.Patch{LocalMode: true, EnsureOnly: true, ExistingOnly: true})
		if failed := res.Failed(); len(failed) > 0 {
			report.add("fix_local_mode", DoctorFail, "could not update %s: %s", failed[0].Path, failed[0].Err)
		} else {
			report.add("fix_local_mode", DoctorPass, "gateway.mode=local ensured in existing configs")
		}
	}

	authoritative := profile.GatewayConfigPath(t.paths)
	for _, loc := range t.locs {
		name := "config_" + strings.ReplaceAll(loc.Label, "-", "_")
		data, err := os.ReadFile(loc.Path)
		switch {
		case os.IsNotExist(err):
			if loc.Path == authoritative {
				report.add(name, DoctorWarn, "%s missing (created on activation)", loc.Path)
			}
			continue
		case err != nil:
			report.add(name, DoctorFail, "cannot read %s: %v", loc.Path, err)
			continue
		}
		if _, ok := reconcile.Read(loc.Path); !ok {
			report.add(name, DoctorFail, "%s is not valid JSON (%d bytes)", loc.Path, len(data))
			continue
		}
		report.add(name, DoctorPass, "%s ok", loc.Path)
	}

	if doc, ok := reconcile.Read(authoritative); ok {
		if mode := reconcile.Lookup(doc, "gateway", "mode"); mode == "local" {
			report.add("gateway_mode", DoctorPass, "gateway.mode is local")
		} else {
			report.add("gateway_mode", DoctorWarn, "gateway.mode is %v; the gateway refuses to start unless it is local (run doctor --fix)", mode)
		}
	}

	if isLoopbackHost(s.cfg.DashboardHost) {
		report.add("dashboard_loopback", DoctorPass, "dashboard host is loopback (%s)", s.cfg.DashboardHost)
	} else {
		report.add("dashboard_loopback", DoctorWarn, "dashboard host is not loopback (%s); the API has no authentication", s.cfg.DashboardHost)
	}

	st := s.prober(t.cmds).Probe(ctx)
	if st.Running {
		report.add("gateway_running", DoctorPass, "gateway is running")
	} else {
		report.add("gateway_running", DoctorWarn, "gateway is not running")
	}

	saved := s.settings.Load()
	if saved.TelegramBotToken != "" {
		report.add("telegram_token", DoctorPass, "telegram token saved")
	} else {
		report.add("telegram_token", DoctorWarn, "no telegram token saved")
	}
	if saved.OpenAIAPIKey != "" || saved.AnthropicAPIKey != "" || saved.OpenAIOAuthEnabled {
		report.add("model_key", DoctorPass, "model provider key saved")
	} else {
		report.add("model_key", DoctorWarn, "no OpenAI or Anthropic key saved")
	}
	return report
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "" {
		return false
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
