package reconcile

import (
	"strings"
)

const (
	DMPolicyAllowlist = "allowlist"
	DMPolicyOpen      = "open"
	AnySender         = "*"
)

// Patch is a desired feature state. Nil or empty fields leave the document
// alone.
type Patch struct {
	Telegram *TelegramPatch
	// Channels enables other channels by name (slack, discord, ...).
	Channels map[string]ChannelPatch
	// TelegramLock replaces the telegram allow set with one user, only
	// where a telegram channel is already configured.
	TelegramLock string
	Audio        *AudioConfig
	TTS          *TTSConfig
	PrimaryModel string
	LocalMode    bool
	Sets         []PathValue
	Unsets       []string

	// EnsureOnly fills absent values instead of overwriting.
	EnsureOnly bool
	// ExistingOnly skips locations whose file does not exist.
	ExistingOnly bool
}

// TelegramPatch enables the telegram channel. An empty UserID leaves the
// bot open to any sender.
type TelegramPatch struct {
	BotToken  string
	UserID    string
	Streaming string
}

// ChannelPatch enables a generic channel with a token under TokenKey.
type ChannelPatch struct {
	Token    string
	TokenKey string
	Extra    map[string]any
}

// PathValue sets a dotted/bracket path to a value.
type PathValue struct {
	Path  string
	Value any
}

type AudioModel struct {
	Provider string
	Model    string
}

// AudioConfig is tools.media.audio (inbound voice transcription).
type AudioConfig struct {
	Enabled  bool
	MaxBytes int
	Models   []AudioModel
}

// TTSConfig is messages.tts (spoken replies).
type TTSConfig struct {
	Auto     string
	Provider string
}

// DefaultAudio transcribes voice notes up to 20 MiB with OpenAI.
func DefaultAudio() *AudioConfig {
	return &AudioConfig{
		Enabled:  true,
		MaxBytes: 20 * 1024 * 1024,
		Models:   []AudioModel{{Provider: "openai", Model: "gpt-4o-mini-transcribe"}},
	}
}

// DefaultTTS answers inbound voice with edge TTS.
func DefaultTTS() *TTSConfig {
	return &TTSConfig{Auto: "inbound", Provider: "edge"}
}

func (a *AudioConfig) value() map[string]any {
	models := make([]any, 0, len(a.Models))
	for _, m := range a.Models {
		models = append(models, map[string]any{"provider": m.Provider, "model": m.Model})
	}
	return map[string]any{
		"enabled":  a.Enabled,
		"maxBytes": a.MaxBytes,
		"models":   models,
	}
}

func (t *TTSConfig) value() map[string]any {
	return map[string]any{"auto": t.Auto, "provider": t.Provider}
}

func (t *TelegramPatch) fragment() map[string]any {
	frag := map[string]any{"groupPolicy": DMPolicyAllowlist}
	if tok := strings.TrimSpace(t.BotToken); tok != "" {
		frag["botToken"] = tok
	}
	if uid := strings.TrimSpace(t.UserID); uid != "" {
		frag["dmPolicy"] = DMPolicyAllowlist
		frag["allowFrom"] = []any{uid}
	} else {
		frag["dmPolicy"] = DMPolicyOpen
		frag["allowFrom"] = []any{AnySender}
	}
	if t.Streaming != "" {
		frag["streaming"] = t.Streaming
	}
	return frag
}

func (c ChannelPatch) fragment() map[string]any {
	frag := map[string]any{}
	for k, v := range c.Extra {
		frag[k] = v
	}
	if tok := strings.TrimSpace(c.Token); tok != "" {
		key := c.TokenKey
		if key == "" {
			key = "token"
		}
		frag[key] = tok
	}
	return frag
}

// EnablesChannel reports whether applying p turns on any channel.
// maintenance patches only top up or adjust files that already exist.
func (p Patch) maintenance() bool {
	return p.EnsureOnly || p.ExistingOnly
}

func (p Patch) EnablesChannel() bool {
	return p.Telegram != nil || len(p.Channels) > 0
}

func applyPatch(doc map[string]any, p Patch) {
	merge := deepMerge
	if p.EnsureOnly {
		merge = ensureMerge
	}

	if p.Telegram != nil {
		tg := childMap(childMap(doc, "channels"), "telegram")
		merge(tg, p.Telegram.fragment())
		tg["enabled"] = true
		enablePlugin(doc, "telegram")
	}
	for name, cp := range p.Channels {
		ch := childMap(childMap(doc, "channels"), name)
		merge(ch, cp.fragment())
		ch["enabled"] = true
		enablePlugin(doc, name)
	}
	if uid := strings.TrimSpace(p.TelegramLock); uid != "" {
		if channels, ok := doc["channels"].(map[string]any); ok {
			if tg, ok := channels["telegram"].(map[string]any); ok {
				tg["dmPolicy"] = DMPolicyAllowlist
				tg["allowFrom"] = []any{uid}
			}
		}
	}
	if p.Audio != nil {
		media := childMap(childMap(doc, "tools"), "media")
		if !p.EnsureOnly || !isTrue(Lookup(media, "audio", "enabled")) {
			media["audio"] = p.Audio.value()
		}
	}
	if p.TTS != nil {
		messages := childMap(doc, "messages")
		if _, ok := messages["tts"]; !p.EnsureOnly || !ok {
			messages["tts"] = p.TTS.value()
		}
	}
	if p.PrimaryModel != "" {
		model := childMap(childMap(childMap(doc, "agents"), "defaults"), "model")
		if _, ok := model["primary"]; !p.EnsureOnly || !ok {
			model["primary"] = p.PrimaryModel
		}
	}
	// Apply rejects patches with invalid paths before reaching here.
	for _, pv := range p.Sets {
		if segs, err := splitPath(pv.Path); err == nil {
			assignPath(doc, segs, pv.Value)
		}
	}
	for _, path := range p.Unsets {
		if segs, err := splitPath(path); err == nil {
			removePath(doc, segs)
		}
	}
	// The gateway refuses to start unless mode is local.
	if p.EnablesChannel() || p.LocalMode {
		childMap(doc, "gateway")["mode"] = "local"
	}
	delete(doc, "voice")
}

func enablePlugin(doc map[string]any, name string) {
	childMap(childMap(childMap(doc, "plugins"), "entries"), name)["enabled"] = true
}
