package onboarding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/reconcile"
)

// VoiceLine is appended to the agent's soul file.
const VoiceLine = "When the user sends a voice message, always reply with a voice note."

type VoiceResult struct {
	SoulPath    string            `json:"soulPath"`
	SoulUpdated bool              `json:"soulUpdated"`
	Config      *reconcile.Result `json:"config,omitempty"`
	Note        string            `json:"note"`
}

func mentionsVoice(content string) bool {
	for _, phrase := range []string{"voice note", "voice message", "reply with a voice"} {
		if strings.Contains(content, phrase) {
			return true
		}
	}
	return false
}

// EnableVoiceReplies adds the voice instruction to the soul file once and
// fills in transcription and TTS settings where they are missing.
func (s *Service) EnableVoiceReplies(_ context.Context, profileID string) (*VoiceResult, error) {
	t := s.resolve(profileID)
	soul := profile.SoulPath(t.paths, "")
	out := &VoiceResult{SoulPath: soul}

	existing, err := os.ReadFile(soul)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read soul: %w", err)
	}
	content := string(existing)
	if !mentionsVoice(content) {
		next := VoiceLine + "\n"
		if trimmed := strings.TrimSpace(content); trimmed != "" {
			next = trimmed + "\n\n" + VoiceLine + "\n"
		}
		if err := os.MkdirAll(filepath.Dir(soul), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		if err := os.WriteFile(soul, []byte(next), 0o644); err != nil {
			return nil, fmt.Errorf("write soul: %w", err)
		}
		out.SoulUpdated = true
	}

	res := reconcile.Apply(t.locs, reconcile.Patch{
		Audio:        reconcile.DefaultAudio(),
		TTS:          reconcile.DefaultTTS(),
		EnsureOnly:   true,
		ExistingOnly: true,
	})
	out.Config = &res
	out.Note = "Voice replies enabled. Your bot will transcribe voice messages and respond with voice notes."
	return out, nil
}
