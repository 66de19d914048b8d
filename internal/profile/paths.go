package profile

import (
	"os"
	"path/filepath"
	"strings"
)

// Env is the fixed environment profile paths are derived from.
type Env struct {
	Home     string
	Root     string
	StateDir string
}

// Paths are the gateway directories and files belonging to one profile.
type Paths struct {
	ConfigDir  string `json:"configDir"`
	Workspace  string `json:"workspace"`
	EnvPath    string `json:"envPath"`
	ConfigJSON string `json:"configJson"`
}

func (e Env) OpenclawDir() string { return filepath.Join(e.Home, ".openclaw") }
func (e Env) ClawdbotDir() string { return filepath.Join(e.Home, ".clawdbot") }

// Suffix returns the directory suffix for a non-default profile. A leading
// "p-" is dropped so "p-1234" maps to "-1234".
func Suffix(id string) string {
	if id == DefaultID || id == "" {
		return ""
	}
	return "-" + strings.TrimPrefix(id, "p-")
}

// ResolvePaths picks the first existing candidate directory for the profile.
func ResolvePaths(env Env, id string) Paths {
	var configDir, workspace string
	if suffix := Suffix(id); suffix == "" {
		configDir = firstExisting(env.StateDir, env.StateDir, env.OpenclawDir(), env.ClawdbotDir())
		workspace = firstExisting(env.Root, filepath.Join(env.StateDir, "workspace"), filepath.Join(env.Home, "clawd"))
	} else {
		configDir = firstExisting(env.ClawdbotDir()+suffix, env.StateDir+suffix, env.OpenclawDir()+suffix)
		workspace = filepath.Join(env.StateDir, "workspace"+suffix)
	}
	return Paths{
		ConfigDir:  configDir,
		Workspace:  workspace,
		EnvPath:    filepath.Join(configDir, ".env"),
		ConfigJSON: filepath.Join(configDir, "clawdbot.json"),
	}
}

// EnvVars are injected into every gateway CLI invocation for the profile.
func EnvVars(env Env, p Paths) map[string]string {
	return map[string]string{
		"CLAWDBOT_CONFIG_DIR":  p.ConfigDir,
		"OPENCLAW_CONFIG_DIR":  p.ConfigDir,
		"OPENCLAW_STATE_DIR":   env.StateDir,
		"OPENCLAW_CONFIG_PATH": GatewayConfigPath(p),
	}
}

// GatewayConfigPath is the openclaw.json the gateway is pointed at.
func GatewayConfigPath(p Paths) string {
	return filepath.Join(p.ConfigDir, "openclaw.json")
}

// SoulPath returns the first existing soul file for the profile, or the
// default location in the workspace.
func SoulPath(p Paths, soulFile string) string {
	var candidates []string
	if strings.TrimSpace(soulFile) != "" {
		candidates = append(candidates, filepath.Join(p.Workspace, soulFile))
	}
	candidates = append(candidates,
		filepath.Join(p.Workspace, "soul.md"),
		filepath.Join(p.Workspace, "SOUL.md"),
		filepath.Join(p.ConfigDir, "soul.md"),
	)
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return filepath.Join(p.Workspace, "soul.md")
}

// firstExisting returns the first existing path among candidates, else fallback.
func firstExisting(fallback string, candidates ...string) string {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return fallback
}
