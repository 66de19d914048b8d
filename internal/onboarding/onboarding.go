// Package onboarding implements the channel setup flows: saving keys and
// bot tokens everywhere the gateway may read them, locking and pairing the
// telegram bot, and enabling voice replies.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/locator"
	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/runner"
	"github.com/quickclaw/quickclaw/internal/settings"
)

// ErrInvalidInput marks requests rejected before any side effect.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

var (
	telegramTokenPattern  = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	telegramUserIDPattern = regexp.MustCompile(`^\d+$`)
)

// ValidateTelegramToken checks the "<bot id>:<secret>" shape.
func ValidateTelegramToken(token string) error {
	if !telegramTokenPattern.MatchString(strings.TrimSpace(token)) {
		return invalid("Invalid Telegram bot token. It should look like 123456789:ABCdef...")
	}
	return nil
}

// ValidateTelegramUserID accepts numeric telegram user ids only.
func ValidateTelegramUserID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("Telegram user ID required")
	}
	if !telegramUserIDPattern.MatchString(id) {
		return invalid("Invalid Telegram user ID. It should be a number (e.g. 123456789). Message @userinfobot in Telegram to get yours.")
	}
	return nil
}

func ValidateSlackToken(token string) error {
	if !strings.HasPrefix(strings.TrimSpace(token), "xoxb-") {
		return invalid("Invalid Slack bot token. It should start with xoxb-")
	}
	return nil
}

// Commands is the CLI surface the flows need.
type Commands interface {
	Run(ctx context.Context, c runner.Cmd) runner.Result
}

type Deps struct {
	Config   *config.Config
	Settings *settings.Store
	CLI      runner.CLI
	Commands func(profileEnv map[string]string) Commands
	Slack    channels.Verifier
}

// Service runs onboarding flows for an explicitly named profile.
type Service struct {
	cfg      *config.Config
	settings *settings.Store
	cli      runner.CLI
	commands func(map[string]string) Commands
	slack    channels.Verifier
	now      func() time.Time
}

func New(d Deps) *Service {
	return &Service{
		cfg:      d.Config,
		settings: d.Settings,
		cli:      d.CLI,
		commands: d.Commands,
		slack:    d.Slack,
		now:      time.Now,
	}
}

type target struct {
	id    string
	env   profile.Env
	paths profile.Paths
	locs  []locator.Location
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
	}
}

func (s *Service) run(ctx context.Context, t target, timeout time.Duration, args ...string) runner.Result {
	cmds := s.commands(profile.EnvVars(t.env, t.paths))
	return cmds.Run(ctx, s.cli.Command(timeout, args...))
}
