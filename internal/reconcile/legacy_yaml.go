package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickclaw/quickclaw/internal/settings"
	"gopkg.in/yaml.v3"
)

type legacyDoc struct {
	Gateway   legacyGateway   `yaml:"gateway"`
	OpenAI    *legacyAPIKey   `yaml:"openai,omitempty"`
	Anthropic *legacyAPIKey   `yaml:"anthropic,omitempty"`
	Telegram  *legacyTelegram `yaml:"telegram,omitempty"`
	FTP       *legacyFTP      `yaml:"ftp,omitempty"`
	Email     *legacyEmail    `yaml:"email,omitempty"`
}

type legacyGateway struct {
	Mode string `yaml:"mode"`
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type legacyAPIKey struct {
	APIKey string `yaml:"api_key"`
}

type legacyTelegram struct {
	BotToken string `yaml:"bot_token"`
}

type legacyFTP struct {
	Host string `yaml:"host,omitempty"`
	User string `yaml:"user,omitempty"`
}

type legacyEmail struct {
	User string `yaml:"user"`
}

// LegacyYAMLResult reports where default.yaml went and its previous copy.
type LegacyYAMLResult struct {
	Path   string `json:"path"`
	Backup string `json:"backup,omitempty"`
}

// WriteLegacyYAML regenerates the install's default.yaml from dashboard
// settings, copying the previous file into backupDir first.
func WriteLegacyYAML(path, backupDir string, s settings.Settings, now time.Time) (LegacyYAMLResult, error) {
	res := LegacyYAMLResult{Path: path}
	if prev, err := os.ReadFile(path); err == nil {
		stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format(time.RFC3339Nano))
		backup := filepath.Join(backupDir, "default-"+stamp+".yaml")
		if err := os.MkdirAll(backupDir, 0o700); err != nil {
			return res, fmt.Errorf("create backup dir: %w", err)
		}
		if err := os.WriteFile(backup, prev, 0o600); err != nil {
			return res, fmt.Errorf("backup default.yaml: %w", err)
		}
		res.Backup = backup
	}

	doc := legacyDoc{Gateway: legacyGateway{Mode: "local", Port: 5000, Host: "127.0.0.1"}}
	if s.OpenAIAPIKey != "" {
		doc.OpenAI = &legacyAPIKey{APIKey: s.OpenAIAPIKey}
	}
	if s.AnthropicAPIKey != "" {
		doc.Anthropic = &legacyAPIKey{APIKey: s.AnthropicAPIKey}
	}
	if s.TelegramBotToken != "" {
		doc.Telegram = &legacyTelegram{BotToken: s.TelegramBotToken}
	}
	if s.FTPHost != "" || s.FTPUser != "" {
		doc.FTP = &legacyFTP{Host: s.FTPHost, User: s.FTPUser}
	}
	if s.EmailUser != "" {
		doc.Email = &legacyEmail{User: s.EmailUser}
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return res, err
	}
	out := append([]byte("# QuickClaw generated config\n"), body...)
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return res, err
	}
	return res, nil
}
