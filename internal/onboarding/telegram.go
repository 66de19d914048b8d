package onboarding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/runner"
)

const pairTimeout = 15 * time.Second

// LockResult is returned by Lock.
type LockResult struct {
	UserID    string            `json:"userId"`
	AllowFrom []string          `json:"allowFrom"`
	Config    *reconcile.Result `json:"config,omitempty"`
	Note      string            `json:"note"`
}

// Lock restricts the bot to one telegram user. The allowlist file only
// grows; configs that already have a telegram channel get their allow set
// replaced.
func (s *Service) Lock(ctx context.Context, profileID, userID string) (*LockResult, error) {
	if err := ValidateTelegramUserID(userID); err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(userID)
	t := s.resolve(profileID)

	list, _, err := reconcile.AddAllowFrom(t.paths.ConfigDir, uid)
	if err != nil {
		return nil, err
	}
	res := reconcile.Apply(t.locs, reconcile.Patch{TelegramLock: uid, ExistingOnly: true})
	return &LockResult{
		UserID:    uid,
		AllowFrom: list.AllowFrom,
		Config:    &res,
		Note:      fmt.Sprintf("Bot locked. Only Telegram user ID %s can chat with it.", uid),
	}, nil
}

// PairResult is returned by Pair. OK is false when the code was refused.
type PairResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Output  string `json:"output"`
}

// pairCommands are the approval subcommands across openclaw releases, in
// the order they are tried.
func pairCommands(code string) [][]string {
	return [][]string{
		{"pairing", "approve", "telegram", code},
		{"channels", "login", "--channel", "telegram", "--code", code},
		{"channels", "approve", "--channel", "telegram", "--code", code},
	}
}

func acceptedPairing(res runner.Result) bool {
	out := res.Combined()
	return res.OK && out != "" && !strings.Contains(out, "unknown command") && !strings.Contains(out, "not found")
}

// Pair approves a pairing code. When no CLI variant accepts it and the code
// is a numeric user id, the id is added to the allowlists directly.
func (s *Service) Pair(ctx context.Context, profileID, code string) (*PairResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("Pairing code required")
	}
	t := s.resolve(profileID)

	var last runner.Result
	for _, args := range pairCommands(code) {
		last = s.run(ctx, t, pairTimeout, args...)
		if acceptedPairing(last) {
			break
		}
	}
	output := runner.CleanOutput(last.Combined())
	if last.OK {
		return &PairResult{OK: true, Message: "Pairing approved! You can now chat with your bot.", Output: output}, nil
	}

	if telegramUserIDPattern.MatchString(code) {
		dirs := []string{t.paths.ConfigDir, t.env.OpenclawDir()}
		var errs []string
		for _, dir := range dirs {
			if _, _, err := reconcile.AddAllowFrom(dir, code); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) == 0 {
			return &PairResult{OK: true, Message: "User approved via allowlist.", Output: "Added user " + code + " to allowlist"}, nil
		}
		output = strings.Join(errs, "; ")
	}
	return &PairResult{
		OK:     false,
		Error:  "Pairing failed. The code may have expired; send /start again in Telegram to get a new code.",
		Output: output,
	}, nil
}

// PairingStatus summarizes pending requests and approved identities.
type PairingStatus struct {
	Pending       string           `json:"pending"`
	ApprovedUsers []string         `json:"approvedUsers"`
	PairedDevices []map[string]any `json:"pairedDevices"`
	HasPaired     bool             `json:"hasPaired"`
}

func (s *Service) PairingStatus(ctx context.Context, profileID string) (*PairingStatus, error) {
	t := s.resolve(profileID)
	res := s.run(ctx, t, 10*time.Second, "pairing", "list", "telegram")

	st := &PairingStatus{
		Pending:       runner.CleanOutput(res.Combined()),
		ApprovedUsers: reconcile.ReadAllowlist(t.paths.ConfigDir).AllowFrom,
		PairedDevices: []map[string]any{},
	}
	devDir := filepath.Join(t.env.OpenclawDir(), "devices")
	entries, _ := os.ReadDir(devDir)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if doc, ok := reconcile.Read(filepath.Join(devDir, e.Name())); ok {
			st.PairedDevices = append(st.PairedDevices, doc)
		}
	}
	st.HasPaired = len(st.ApprovedUsers) > 0 || len(st.PairedDevices) > 0
	return st, nil
}
