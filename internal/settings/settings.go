// Package settings stores dashboard-level credentials and preferences.
package settings

import (
	"encoding/json"
	"sync"

	"github.com/quickclaw/quickclaw/internal/config"
)

// Settings mirrors dashboard-data/settings.json.
type Settings struct {
	OpenAIAPIKey       string `json:"openaiApiKey"`
	OpenAIOAuthEnabled bool   `json:"openaiOAuthEnabled"`
	AnthropicAPIKey    string `json:"anthropicApiKey"`
	TelegramBotToken   string `json:"telegramBotToken"`
	SlackBotToken      string `json:"slackBotToken,omitempty"`
	FTPHost            string `json:"ftpHost"`
	FTPUser            string `json:"ftpUser"`
	EmailUser          string `json:"emailUser"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns stored settings; a missing or corrupt file yields defaults.
func (s *Store) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() Settings {
	var out Settings
	if !config.ReadJSON(s.path, &out) {
		return Settings{}
	}
	return out
}

// Update merges the non-nil fields of patch into the stored settings.
// Unknown keys already present in the file are kept.
func (s *Store) Update(patch map[string]any) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := config.ReadJSONMap(s.path)
	if err != nil {
		raw = map[string]any{}
	}
	for k, v := range patch {
		raw[k] = v
	}
	if err := config.WriteJSON(s.path, raw); err != nil {
		return Settings{}, err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, err
	}
	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, err
	}
	return out, nil
}

// MaskKey hides all but the edges of a secret.
func MaskKey(k string) string {
	if len(k) < 8 {
		return "••••••••"
	}
	return k[:6] + "••••" + k[len(k)-4:]
}
