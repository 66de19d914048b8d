// Package diagnostics inspects a profile's gateway setup without changing
// it: the doctor checklist and the telegram troubleshooting reports.
package diagnostics

import (
	"context"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/locator"
	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/runner"
	"github.com/quickclaw/quickclaw/internal/settings"
)

type Commands interface {
	Run(ctx context.Context, c runner.Cmd) runner.Result
}

type Prober interface {
	Probe(ctx context.Context) probe.State
}

// Telegram is the read-only bot API surface.
type Telegram interface {
	GetMe(ctx context.Context, token string) (channels.BotInfo, error)
	PendingUpdates(ctx context.Context, token string, limit int) ([]channels.PendingUpdate, error)
}

type Deps struct {
	Config   *config.Config
	Settings *settings.Store
	CLI      runner.CLI
	Commands func(profileEnv map[string]string) Commands
	Prober   func(r Commands) Prober
	Telegram Telegram
}

type Service struct {
	cfg      *config.Config
	settings *settings.Store
	cli      runner.CLI
	commands func(map[string]string) Commands
	prober   func(Commands) Prober
	telegram Telegram
}

func New(d Deps) *Service {
	s := &Service{
		cfg:      d.Config,
		settings: d.Settings,
		cli:      d.CLI,
		commands: d.Commands,
		prober:   d.Prober,
		telegram: d.Telegram,
	}
	if s.prober == nil {
		ports := d.Config.GatewayPorts()
		s.prober = func(r Commands) Prober { return probe.New(r, d.CLI, ports) }
	}
	return s
}

type target struct {
	id    string
	env   profile.Env
	paths profile.Paths
	locs  []locator.Location
	cmds  Commands
}

func (s *Service) resolve(profileID string) target {
	if profileID == "" {
		profileID = profile.DefaultID
	}
	env := profile.Env{Home: s.cfg.Home, Root: s.cfg.Root, StateDir: s.cfg.StateDir}
	paths := profile.ResolvePaths(env, profileID)
	return target{
		id:    profileID,
		env:   env,
		paths: paths,
		locs:  locator.ForProfile(env, profileID, paths),
		cmds:  s.commands(profile.EnvVars(env, paths)),
	}
}
