package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the dashboard's own settings. Values come from defaults,
// env files and QUICKCLAW_* variables, in that order.
type Config struct {
	Root          string
	Home          string `split_words:"true"`
	StateDir      string `envconfig:"OPENCLAW_STATE_DIR"`
	DashboardHost string `envconfig:"DASHBOARD_HOST" default:"127.0.0.1"`
	DashboardPort int    `envconfig:"DASHBOARD_PORT" default:"3000"`
	LogLevel      string `split_words:"true" default:"info"`

	Gateway GatewayConfig `ignored:"true"`
}

// GatewayConfig describes how the external gateway is reached and driven.
type GatewayConfig struct {
	Port           int           `default:"18789"`
	LegacyPort     int           `split_words:"true" default:"5000"`
	CommandTimeout time.Duration `split_words:"true" default:"15s"`
	StopTimeout    time.Duration `split_words:"true" default:"30s"`
	StartSettle    time.Duration `split_words:"true" default:"5s"`
	ProcessMatch   string        `split_words:"true" default:"openclaw.*gateway"`
}

// DefaultConfig returns a config with built-in defaults and no path resolution.
func DefaultConfig() *Config {
	return &Config{
		DashboardHost: "127.0.0.1",
		DashboardPort: 3000,
		LogLevel:      "info",
		Gateway: GatewayConfig{
			Port:           18789,
			LegacyPort:     5000,
			CommandTimeout: 15 * time.Second,
			StopTimeout:    30 * time.Second,
			StartSettle:    5 * time.Second,
			ProcessMatch:   "openclaw.*gateway",
		},
	}
}

// resolve fills empty directory fields and expands "~".
func (c *Config) resolve() error {
	if strings.TrimSpace(c.Home) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		c.Home = home
	}
	c.Home = expandHome(c.Home, c.Home)
	if strings.TrimSpace(c.Root) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve root dir: %w", err)
		}
		c.Root = wd
	}
	c.Root = expandHome(c.Root, c.Home)
	if strings.TrimSpace(c.StateDir) == "" {
		// Installers create openclaw-home, the launcher uses openclaw-state.
		c.StateDir = filepath.Join(c.Root, "openclaw-state")
		if dirExists(filepath.Join(c.Root, "openclaw-home")) {
			c.StateDir = filepath.Join(c.Root, "openclaw-home")
		}
	}
	c.StateDir = expandHome(c.StateDir, c.Home)
	return nil
}

// PIDDir holds pid files of processes the dashboard spawned.
func (c *Config) PIDDir() string { return filepath.Join(c.Root, ".pids") }

// LogDir holds the gateway log the spawned process appends to.
func (c *Config) LogDir() string { return filepath.Join(c.Root, "logs") }

// DataDir holds dashboard-owned JSON state (profiles, settings, history).
func (c *Config) DataDir() string { return filepath.Join(c.Root, "dashboard-data") }

// InstallDir is the local openclaw install.
func (c *Config) InstallDir() string { return filepath.Join(c.Root, "openclaw") }

func (c *Config) GatewayPIDPath() string { return filepath.Join(c.PIDDir(), "gateway.pid") }
func (c *Config) GatewayLogPath() string { return filepath.Join(c.LogDir(), "gateway.log") }
func (c *Config) ProfilesPath() string   { return filepath.Join(c.DataDir(), "profiles.json") }
func (c *Config) SettingsPath() string   { return filepath.Join(c.DataDir(), "settings.json") }
func (c *Config) HistoryDBPath() string  { return filepath.Join(c.DataDir(), "lifecycle.db") }
func (c *Config) BackupsDir() string     { return filepath.Join(c.DataDir(), "config-backups") }

// LocalCLI is the openclaw binary shipped with the local install.
func (c *Config) LocalCLI() string {
	return filepath.Join(c.InstallDir(), "node_modules", ".bin", "openclaw")
}

// LegacyYAMLPath is the generated default.yaml consumed by older gateways.
func (c *Config) LegacyYAMLPath() string {
	return filepath.Join(c.InstallDir(), "config", "default.yaml")
}

// GatewayPorts returns the primary and legacy listen ports.
func (c *Config) GatewayPorts() []int {
	return []int{c.Gateway.Port, c.Gateway.LegacyPort}
}

// EnsureDirs creates the dashboard-owned directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.PIDDir(), c.LogDir(), c.DataDir(), c.BackupsDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
