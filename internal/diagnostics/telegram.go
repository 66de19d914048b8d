package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/runner"
	"github.com/quickclaw/quickclaw/internal/settings"
)

const (
	apiTimeout    = 8 * time.Second
	statusTimeout = 10 * time.Second
	logTailLines  = 12
	pendingLimit  = 3
)

// TokenLocations reports where a telegram token was found.
type TokenLocations struct {
	Settings        bool `json:"settings"`
	Env             bool `json:"env"`
	ConfigJSON      bool `json:"configJson"`
	Credentials     bool `json:"credentials"`
	OpenclawJSON    bool `json:"openclawJson"`
	TelegramEnabled bool `json:"telegramEnabled"`
	PluginEnabled   bool `json:"pluginEnabled"`
}

// ConfigSummary describes the telegram section of one config file.
type ConfigSummary struct {
	ConfigPath         string   `json:"configPath"`
	HasTelegramChannel bool     `json:"hasTelegramChannel"`
	TelegramEnabled    bool     `json:"telegramEnabled"`
	HasToken           bool     `json:"hasToken"`
	TokenPreview       string   `json:"tokenPreview"`
	PluginEnabled      bool     `json:"pluginEnabled"`
	DMPolicy           string   `json:"dmPolicy,omitempty"`
	AllChannels        []string `json:"allChannels"`
	AllPlugins         []string `json:"allPlugins"`
}

type TelegramReport struct {
	ProfileID      string                  `json:"profileId"`
	Gateway        probe.State             `json:"gateway"`
	TokenLocations TokenLocations          `json:"tokenLocations"`
	BotInfo        *channels.BotInfo       `json:"botInfo,omitempty"`
	BotError       string                  `json:"botError,omitempty"`
	PendingUpdates int                     `json:"pendingUpdates"`
	LastUpdate     *channels.PendingUpdate `json:"lastUpdate,omitempty"`
	RecentLogs     string                  `json:"recentLogs"`
	ConfigSummary  *ConfigSummary          `json:"configSummary,omitempty"`
	CriticalIssue  string                  `json:"criticalIssue,omitempty"`
	Suggestions    []string                `json:"suggestions"`
}

// Diagnose explains why a telegram bot does not answer: whether the
// gateway runs, where the token lives, what the Bot API says about it and
// what the gateway logged recently.
func (s *Service) Diagnose(ctx context.Context, profileID string) *TelegramReport {
	t := s.resolve(profileID)
	rep := &TelegramReport{ProfileID: t.id, Suggestions: []string{}}
	rep.Gateway = s.prober(t.cmds).Probe(ctx)

	token := s.findToken(t, rep)
	if token != "" {
		actx, cancel := context.WithTimeout(ctx, apiTimeout)
		info, err := s.telegram.GetMe(actx, token)
		cancel()
		if err != nil {
			rep.BotError = err.Error()
		} else {
			rep.BotInfo = &info
		}

		actx, cancel = context.WithTimeout(ctx, apiTimeout)
		updates, err := s.telegram.PendingUpdates(actx, token, pendingLimit)
		cancel()
		if err == nil {
			rep.PendingUpdates = len(updates)
			if len(updates) > 0 {
				last := updates[len(updates)-1]
				rep.LastUpdate = &last
			}
		}
	} else {
		rep.BotError = "No token found in any config location"
	}

	rep.RecentLogs = s.recentLogs(t)
	if doc, ok := reconcile.Read(profile.GatewayConfigPath(t.paths)); ok {
		sum := summarize(profile.GatewayConfigPath(t.paths), doc)
		rep.ConfigSummary = &sum
	}
	rep.Suggestions = suggestions(rep)
	return rep
}

// findToken checks every store in the order the gateway's releases read
// them and returns the first token seen.
func (s *Service) findToken(t target, rep *TelegramReport) string {
	var found string
	take := func(v string) {
		if found == "" && v != "" {
			found = v
		}
	}

	saved := s.settings.Load().TelegramBotToken
	rep.TokenLocations.Settings = saved != ""
	take(saved)

	if env, err := config.ReadEnvFile(t.paths.EnvPath); err == nil {
		tok := env["TELEGRAM_BOT_TOKEN"]
		if tok == "" {
			tok = env["TELEGRAM_TOKEN"]
		}
		rep.TokenLocations.Env = tok != ""
		take(tok)
	}

	if doc, ok := reconcile.Read(t.paths.ConfigJSON); ok {
		tok := stringAt(doc, "channels", "telegram", "botToken")
		rep.TokenLocations.ConfigJSON = tok != ""
		take(tok)
	}

	if creds, ok := reconcile.ReadTelegramCredentials(t.paths.ConfigDir); ok {
		rep.TokenLocations.Credentials = creds.BotToken != ""
	}

	doc, ok := reconcile.Read(profile.GatewayConfigPath(t.paths))
	if !ok {
		rep.CriticalIssue = "The gateway config " + profile.GatewayConfigPath(t.paths) + " is missing or unreadable."
		return found
	}
	tok := stringAt(doc, "channels", "telegram", "botToken")
	rep.TokenLocations.OpenclawJSON = tok != ""
	rep.TokenLocations.TelegramEnabled = reconcile.Lookup(doc, "channels", "telegram", "enabled") == true
	rep.TokenLocations.PluginEnabled = reconcile.Lookup(doc, "plugins", "entries", "telegram", "enabled") == true
	take(tok)

	var issues []string
	if !rep.TokenLocations.TelegramEnabled {
		issues = append(issues, "Telegram is disabled in openclaw.json (channels.telegram.enabled is not true).")
	}
	if !rep.TokenLocations.PluginEnabled {
		issues = append(issues, "The telegram plugin is disabled in openclaw.json.")
	}
	rep.CriticalIssue = strings.Join(issues, " ")
	return found
}

// logSources lists every gateway.log the gateway or dashboard may write,
// deduplicated.
func (s *Service) logSources(t target) []string {
	candidates := []string{
		s.cfg.GatewayLogPath(),
		filepath.Join(s.cfg.StateDir, "logs", "gateway.log"),
		filepath.Join(t.env.OpenclawDir(), "logs", "gateway.log"),
		filepath.Join(t.env.ClawdbotDir(), "logs", "gateway.log"),
		filepath.Join(t.paths.ConfigDir, "logs", "gateway.log"),
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = filepath.Clean(c)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (s *Service) recentLogs(t target) string {
	var lines []string
	for _, path := range s.logSources(t) {
		tail := runner.TailFile(path, logTailLines)
		if len(tail) == 0 {
			continue
		}
		lines = append(lines, "── "+path+" ──")
		lines = append(lines, tail...)
	}
	if len(lines) == 0 {
		return "No gateway logs found"
	}
	return strings.Join(lines, "\n")
}

func summarize(path string, doc map[string]any) ConfigSummary {
	sum := ConfigSummary{
		ConfigPath:   path,
		TokenPreview: "none",
		AllChannels:  sortedKeys(reconcile.Lookup(doc, "channels")),
		AllPlugins:   sortedKeys(reconcile.Lookup(doc, "plugins", "entries")),
	}
	tg, ok := reconcile.Lookup(doc, "channels", "telegram").(map[string]any)
	if !ok {
		return sum
	}
	sum.HasTelegramChannel = true
	sum.TelegramEnabled = tg["enabled"] == true
	if tok, _ := tg["botToken"].(string); tok != "" {
		sum.HasToken = true
		sum.TokenPreview = settings.MaskKey(tok)
	}
	sum.DMPolicy, _ = tg["dmPolicy"].(string)
	sum.PluginEnabled = reconcile.Lookup(doc, "plugins", "entries", "telegram", "enabled") == true
	return sum
}

func suggestions(rep *TelegramReport) []string {
	out := []string{}
	if rep.CriticalIssue != "" {
		out = append(out, "CRITICAL: "+rep.CriticalIssue)
	}
	if !rep.Gateway.Running {
		out = append(out, "Gateway is NOT running. Restart it with `quickclaw gateway restart`.")
	}
	if strings.Contains(rep.BotError, "Unauthorized") {
		out = append(out, "Telegram says the bot token is INVALID. Double-check you copied the full token from BotFather.")
	}
	if strings.Contains(rep.BotError, "deadline exceeded") || strings.Contains(rep.BotError, "timeout") {
		out = append(out, "Could not reach the Telegram API. Check your internet connection.")
	}
	if !rep.TokenLocations.OpenclawJSON {
		out = append(out, "Token missing from openclaw.json, the config the gateway reads. Save the token again.")
	}
	if rep.PendingUpdates > 0 {
		out = append(out, fmt.Sprintf("There are %d unprocessed messages from Telegram; the gateway is not polling them. It may need a restart.", rep.PendingUpdates))
	}
	if rep.Gateway.Running && rep.BotInfo != nil && rep.PendingUpdates == 0 && rep.TokenLocations.OpenclawJSON && rep.CriticalIssue == "" {
		out = append(out, "Everything looks configured correctly. Send another message in Telegram and wait 10-15 seconds.")
	}
	return out
}

// ConfigLocation is the telegram view of one candidate config file.
type ConfigLocation struct {
	Label    string         `json:"label"`
	Path     string         `json:"path"`
	Exists   bool           `json:"exists"`
	Telegram *ConfigSummary `json:"telegram,omitempty"`
}

type SymlinkInfo struct {
	Exists    bool   `json:"exists"`
	IsSymlink bool   `json:"isSymlink"`
	Target    string `json:"target,omitempty"`
}

type PlistInfo struct {
	Exists        bool `json:"exists"`
	HasConfigDir  bool `json:"hasConfigDir"`
	HasStatePath  bool `json:"hasStatePath"`
	HasConfigPath bool `json:"hasConfigPath"`
}

type DiagnosticsReport struct {
	ProfileID      string            `json:"profileId"`
	Configs        []ConfigLocation  `json:"configs"`
	Symlink        SymlinkInfo       `json:"symlink"`
	Gateway        probe.State       `json:"gateway"`
	ChannelsStatus string            `json:"channelsStatus"`
	Plist          PlistInfo         `json:"plist"`
	EnvVars        map[string]string `json:"envVars"`
}

// Diagnostics dumps the raw state behind the telegram setup: every config
// location, the ~/.openclaw link, the launch agent and the CLI's view.
func (s *Service) Diagnostics(ctx context.Context, profileID string) *DiagnosticsReport {
	t := s.resolve(profileID)
	rep := &DiagnosticsReport{
		ProfileID: t.id,
		Configs:   make([]ConfigLocation, 0, len(t.locs)),
		EnvVars:   profile.EnvVars(t.env, t.paths),
	}
	rep.EnvVars["INSTALL_DIR"] = s.cfg.InstallDir()

	for _, loc := range t.locs {
		cl := ConfigLocation{Label: loc.Label, Path: loc.Path, Exists: config.Exists(loc.Path)}
		if doc, ok := reconcile.Read(loc.Path); ok {
			sum := summarize(loc.Path, doc)
			cl.Telegram = &sum
		}
		rep.Configs = append(rep.Configs, cl)
	}

	if info, err := os.Lstat(t.env.OpenclawDir()); err == nil {
		rep.Symlink.Exists = true
		rep.Symlink.IsSymlink = info.Mode()&os.ModeSymlink != 0
		if rep.Symlink.IsSymlink {
			rep.Symlink.Target, _ = os.Readlink(t.env.OpenclawDir())
		}
	}

	rep.Gateway = s.prober(t.cmds).Probe(ctx)
	res := t.cmds.Run(ctx, s.cli.Command(statusTimeout, "channels", "status"))
	rep.ChannelsStatus = runner.CleanOutput(res.Combined())

	plist := filepath.Join(t.env.Home, "Library", "LaunchAgents", "ai.openclaw.gateway.plist")
	if data, err := os.ReadFile(plist); err == nil {
		body := string(data)
		rep.Plist = PlistInfo{
			Exists:        true,
			HasConfigDir:  strings.Contains(body, "OPENCLAW_CONFIG_DIR"),
			HasStatePath:  strings.Contains(body, "OPENCLAW_STATE_DIR"),
			HasConfigPath: strings.Contains(body, "OPENCLAW_CONFIG_PATH"),
		}
	}
	return rep
}

func stringAt(doc map[string]any, keys ...string) string {
	s, _ := reconcile.Lookup(doc, keys...).(string)
	return s
}

func sortedKeys(v any) []string {
	m, _ := v.(map[string]any)
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
