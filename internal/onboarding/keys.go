package onboarding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/locator"
	"github.com/quickclaw/quickclaw/internal/reconcile"
)

// Models selected when a provider key is saved.
const (
	OpenAIModel    = "openai/gpt-4o"
	AnthropicModel = "anthropic/claude-sonnet-4-5-20250929"
)

// TokenWrites reports which stores accepted a telegram token.
type TokenWrites struct {
	CLIAdd       bool              `json:"cliAdd"`
	Settings     bool              `json:"settings"`
	Env          bool              `json:"env"`
	ConfigJSON   bool              `json:"configJson"`
	OpenclawJSON bool              `json:"openclawJson"`
	YAMLConfig   bool              `json:"yamlConfig"`
	Credentials  bool              `json:"credentials"`
	Config       *reconcile.Result `json:"config,omitempty"`
}

// SaveKeyResult is returned by SaveKey.
type SaveKeyResult struct {
	Provider string             `json:"provider"`
	Writes   *TokenWrites       `json:"writeResults,omitempty"`
	Identity *channels.Identity `json:"identity,omitempty"`
	Config   *reconcile.Result  `json:"config,omitempty"`
	Note     string             `json:"note,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// SaveKey stores a provider credential. Telegram and Slack tokens are
// validated before anything is written.
func (s *Service) SaveKey(ctx context.Context, profileID, provider, key string) (*SaveKeyResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	key = strings.TrimSpace(key)
	if provider == "" || key == "" {
		return nil, invalid("Provider and key required")
	}
	switch provider {
	case "openai", "anthropic":
		return s.saveModelKey(profileID, provider, key)
	case "telegram":
		if err := ValidateTelegramToken(key); err != nil {
			return nil, err
		}
		writes, err := s.SaveTelegramToken(ctx, profileID, key)
		if err != nil {
			return nil, err
		}
		return &SaveKeyResult{Provider: provider, Writes: writes, Note: "Token saved. Activate telegram to restart the gateway."}, nil
	case "slack":
		if err := ValidateSlackToken(key); err != nil {
			return nil, err
		}
		return s.saveSlackToken(ctx, profileID, key)
	default:
		return nil, invalid("Unknown provider: %s", provider)
	}
}

func (s *Service) saveModelKey(profileID, provider, key string) (*SaveKeyResult, error) {
	field, envKey, model := "openaiApiKey", "OPENAI_API_KEY", OpenAIModel
	if provider == "anthropic" {
		field, envKey, model = "anthropicApiKey", "ANTHROPIC_API_KEY", AnthropicModel
	}
	saved, err := s.settings.Update(map[string]any{field: key})
	if err != nil {
		return nil, err
	}
	out := &SaveKeyResult{Provider: provider}
	t := s.resolve(profileID)
	if config.Exists(t.paths.ConfigDir) {
		if err := config.UpdateEnvFile(t.paths.EnvPath, map[string]string{envKey: key}); err != nil {
			out.Warnings = append(out.Warnings, "profile .env: "+err.Error())
		}
	}
	res := reconcile.Apply(t.locs, reconcile.Patch{LocalMode: true, PrimaryModel: model, ExistingOnly: true})
	out.Config = &res
	if _, err := reconcile.WriteLegacyYAML(s.cfg.LegacyYAMLPath(), s.cfg.BackupsDir(), saved, s.now()); err != nil {
		out.Warnings = append(out.Warnings, "default.yaml: "+err.Error())
	}
	slog.Info("provider key saved", "provider", provider, "profile", t.id)
	return out, nil
}

func (s *Service) saveSlackToken(ctx context.Context, profileID, token string) (*SaveKeyResult, error) {
	out := &SaveKeyResult{Provider: "slack"}
	if s.slack != nil {
		vctx, cancel := context.WithTimeout(ctx, channels.DefaultTimeout)
		id, err := s.slack.Verify(vctx, token)
		cancel()
		if err != nil {
			out.Warnings = append(out.Warnings, err.Error())
		} else {
			out.Identity = &id
		}
	}
	if _, err := s.settings.Update(map[string]any{"slackBotToken": token}); err != nil {
		return nil, err
	}
	t := s.resolve(profileID)
	if config.Exists(t.paths.ConfigDir) {
		if err := config.UpdateEnvFile(t.paths.EnvPath, map[string]string{"SLACK_BOT_TOKEN": token}); err != nil {
			out.Warnings = append(out.Warnings, "profile .env: "+err.Error())
		}
	}
	res := reconcile.Apply(t.locs, reconcile.Patch{
		Channels: map[string]reconcile.ChannelPatch{"slack": {Token: token, TokenKey: "botToken"}},
	})
	out.Config = &res
	if err := res.Err(); err != nil {
		return out, err
	}
	out.Note = "Slack token saved. Restart the gateway to connect."
	return out, nil
}

// SaveTelegramToken writes token to every store the gateway or its older
// versions may read. Individual failures are reported, not returned; the
// call fails only when no gateway config location took the token.
func (s *Service) SaveTelegramToken(ctx context.Context, profileID, token string) (*TokenWrites, error) {
	if err := ValidateTelegramToken(token); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	t := s.resolve(profileID)
	w := &TokenWrites{}

	res := s.run(ctx, t, s.cfg.Gateway.CommandTimeout, "channels", "add", "--channel", "telegram", "--token", token)
	w.CLIAdd = res.OK
	if !res.OK {
		slog.Warn("openclaw channels add failed", "output", truncate(res.Output(), 200))
	}

	saved, err := s.settings.Update(map[string]any{"telegramBotToken": token})
	w.Settings = err == nil

	if config.Exists(t.paths.ConfigDir) {
		err := config.UpdateEnvFile(t.paths.EnvPath, map[string]string{"TELEGRAM_BOT_TOKEN": token, "TELEGRAM_TOKEN": token})
		w.Env = err == nil
	}

	if config.Exists(t.paths.ConfigJSON) {
		legacy := []locator.Location{{Path: t.paths.ConfigJSON, Label: "clawdbot"}}
		lr := reconcile.Apply(legacy, reconcile.Patch{
			EnsureOnly: true,
			Sets: []reconcile.PathValue{
				{Path: "channels.telegram.botToken", Value: token},
				{Path: "channels.telegram.enabled", Value: true},
				{Path: "plugins.entries.telegram.enabled", Value: true},
			},
		})
		w.ConfigJSON = lr.AnyWritten
	}

	cfgRes := reconcile.Apply(t.locs, reconcile.Patch{
		Telegram:   &reconcile.TelegramPatch{BotToken: token},
		EnsureOnly: true,
		Sets:       []reconcile.PathValue{{Path: "channels.telegram.botToken", Value: token}},
	})
	w.Config = &cfgRes
	w.OpenclawJSON = cfgRes.AnyWritten

	if err == nil {
		_, yerr := reconcile.WriteLegacyYAML(s.cfg.LegacyYAMLPath(), s.cfg.BackupsDir(), saved, s.now())
		w.YAMLConfig = yerr == nil
	}
	w.Credentials = reconcile.WriteTelegramCredentials(t.paths.ConfigDir, token, s.now()) == nil

	slog.Info("telegram token saved", "profile", t.id, "cliAdd", w.CLIAdd, "openclawJson", w.OpenclawJSON)
	return w, cfgRes.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
