package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Load builds the dashboard config.
// Priority: process environment > env files > defaults.
func Load() (*Config, error) {
	LoadEnvFileCandidates()

	cfg := DefaultConfig()
	if err := envconfig.Process("QUICKCLAW", cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := envconfig.Process("QUICKCLAW_GATEWAY", &cfg.Gateway); err != nil {
		return nil, fmt.Errorf("process gateway env: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadJSONMap reads a JSON object from path. A missing file returns an
// error satisfying errors.Is(err, fs.ErrNotExist); a null document returns
// an empty map.
func ReadJSONMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// ReadJSON decodes path into v. Missing or malformed files leave v untouched
// and report false.
func ReadJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
