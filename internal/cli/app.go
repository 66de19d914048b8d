package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/diagnostics"
	"github.com/quickclaw/quickclaw/internal/lifecycle"
	"github.com/quickclaw/quickclaw/internal/locator"
	"github.com/quickclaw/quickclaw/internal/onboarding"
	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/runner"
	"github.com/quickclaw/quickclaw/internal/settings"
	"github.com/quickclaw/quickclaw/internal/timeline"
)

type statusProber interface {
	Probe(ctx context.Context) probe.State
}

// wiring holds the process and network seams the services are built on.
type wiring struct {
	commands func(profileEnv map[string]string) lifecycle.Commands
	probe    func(r probe.CommandRunner) statusProber
	telegram *channels.Telegram
	slack    channels.Verifier
}

// app is every service one command invocation needs.
type app struct {
	cfg         *config.Config
	settings    *settings.Store
	profiles    *profile.Store
	cli         runner.CLI
	history     *timeline.TimelineService
	lifecycle   *lifecycle.Controller
	onboarding  *onboarding.Service
	diagnostics *diagnostics.Service
	telegram    *channels.Telegram
}

var loadAppFn = loadApp

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cli := runner.ResolveCLI(cfg.LocalCLI())
	return newApp(cfg, cli, wiring{
		commands: func(env map[string]string) lifecycle.Commands {
			return runner.New(env, cfg.InstallDir())
		},
		telegram: channels.NewTelegram(),
		slack:    channels.NewSlack(),
	})
}

func newApp(cfg *config.Config, cli runner.CLI, w wiring) (*app, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	if w.probe == nil {
		ports := cfg.GatewayPorts()
		w.probe = func(r probe.CommandRunner) statusProber { return probe.New(r, cli, ports) }
	}
	a := &app{
		cfg:      cfg,
		settings: settings.NewStore(cfg.SettingsPath()),
		profiles: profile.NewStore(cfg.ProfilesPath()),
		cli:      cli,
		telegram: w.telegram,
	}

	deps := lifecycle.Deps{
		Config:   cfg,
		CLI:      cli,
		Commands: w.commands,
		Prober:   func(r lifecycle.Commands) lifecycle.Prober { return w.probe(r) },
		Telegram: w.telegram,
	}
	if hist, err := timeline.NewTimelineService(cfg.HistoryDBPath()); err != nil {
		slog.Warn("run history disabled", "path", cfg.HistoryDBPath(), "error", err)
	} else {
		a.history = hist
		deps.Recorder = hist
	}
	a.lifecycle = lifecycle.New(deps)

	a.onboarding = onboarding.New(onboarding.Deps{
		Config:   cfg,
		Settings: a.settings,
		CLI:      cli,
		Commands: func(env map[string]string) onboarding.Commands { return w.commands(env) },
		Slack:    w.slack,
	})
	a.diagnostics = diagnostics.New(diagnostics.Deps{
		Config:   cfg,
		Settings: a.settings,
		CLI:      cli,
		Commands: func(env map[string]string) diagnostics.Commands { return w.commands(env) },
		Prober:   func(r diagnostics.Commands) diagnostics.Prober { return w.probe(r) },
		Telegram: w.telegram,
	})
	return a, nil
}

func (a *app) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// profileID returns the explicit profile, validated, or the active one.
func (a *app) profileID(explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		p, err := a.profiles.Get(id)
		if err != nil {
			return "", err
		}
		return p.ID, nil
	}
	p, err := a.profiles.Active()
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// locations returns the config candidates of a profile.
func (a *app) locations(profileID string) []locator.Location {
	env := profile.Env{Home: a.cfg.Home, Root: a.cfg.Root, StateDir: a.cfg.StateDir}
	return locator.ForProfile(env, profileID, profile.ResolvePaths(env, profileID))
}

// activationRequest builds an activate request from the saved token.
func (a *app) activationRequest(profileID, userID string, fresh bool) (lifecycle.Request, error) {
	token := a.settings.Load().TelegramBotToken
	if token == "" {
		return lifecycle.Request{}, fmt.Errorf("%w: save a Telegram bot token first", onboarding.ErrInvalidInput)
	}
	if userID != "" {
		if err := onboarding.ValidateTelegramUserID(userID); err != nil {
			return lifecycle.Request{}, err
		}
	}
	return lifecycle.Request{
		ProfileID:    profileID,
		Token:        token,
		UserID:       strings.TrimSpace(userID),
		FreshInstall: fresh,
		Features:     lifecycle.DefaultFeatures(),
	}, nil
}

// withApp loads the app, resolves the profile and runs fn.
func withApp(fn func(a *app, profileID string) error) error {
	a, err := loadAppFn()
	if err != nil {
		return err
	}
	defer a.Close()
	id, err := a.profileID(profileFlag)
	if err != nil {
		return err
	}
	return fn(a, id)
}

func isInvalid(err error) bool {
	return errors.Is(err, onboarding.ErrInvalidInput) || errors.Is(err, profile.ErrNotFound)
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
