package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickclaw/quickclaw/internal/config"
)

// Allowlist is credentials/telegram-allowFrom.json. Entries are unique and
// only ever added.
type Allowlist struct {
	Version   int      `json:"version"`
	AllowFrom []string `json:"allowFrom"`
}

// AllowlistPath is the telegram allowlist file inside a config dir.
func AllowlistPath(configDir string) string {
	return filepath.Join(configDir, "credentials", "telegram-allowFrom.json")
}

// ReadAllowlist returns the stored allowlist; missing or corrupt files read
// as empty. Numeric entries are normalized to strings.
func ReadAllowlist(configDir string) Allowlist {
	out := Allowlist{Version: 1, AllowFrom: []string{}}
	data, err := os.ReadFile(AllowlistPath(configDir))
	if err != nil {
		return out
	}
	var raw struct {
		Version   int   `json:"version"`
		AllowFrom []any `json:"allowFrom"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return out
	}
	if raw.Version > 0 {
		out.Version = raw.Version
	}
	for _, v := range raw.AllowFrom {
		id := strings.TrimSpace(fmt.Sprint(v))
		if id != "" && !contains(out.AllowFrom, id) {
			out.AllowFrom = append(out.AllowFrom, id)
		}
	}
	return out
}

// AddAllowFrom appends ids that are not yet present and persists the file
// when anything changed.
func AddAllowFrom(configDir string, ids ...string) (Allowlist, bool, error) {
	list := ReadAllowlist(configDir)
	changed := false
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || contains(list.AllowFrom, id) {
			continue
		}
		list.AllowFrom = append(list.AllowFrom, id)
		changed = true
	}
	if !changed && config.Exists(AllowlistPath(configDir)) {
		return list, false, nil
	}
	if err := config.WriteJSON(AllowlistPath(configDir), list); err != nil {
		return list, false, fmt.Errorf("write allowlist: %w", err)
	}
	return list, changed, nil
}

// TelegramCredentials is credentials/telegram.json.
type TelegramCredentials struct {
	BotToken  string    `json:"botToken"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WriteTelegramCredentials stores the bot token next to the allowlist.
func WriteTelegramCredentials(configDir, token string, now time.Time) error {
	path := filepath.Join(configDir, "credentials", "telegram.json")
	return config.WriteJSON(path, TelegramCredentials{BotToken: token, Enabled: true, UpdatedAt: now.UTC()})
}

// ReadTelegramCredentials returns the stored credentials, if any.
func ReadTelegramCredentials(configDir string) (TelegramCredentials, bool) {
	var c TelegramCredentials
	ok := config.ReadJSON(filepath.Join(configDir, "credentials", "telegram.json"), &c)
	return c, ok
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
