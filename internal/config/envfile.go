package config

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadEnvFileCandidates loads environment variables from known files.
// Existing process env vars are never overridden.
func LoadEnvFileCandidates() {
	candidates := make([]string, 0, 4)
	if explicit := strings.TrimSpace(os.Getenv("QUICKCLAW_ENV_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if root := strings.TrimSpace(os.Getenv("QUICKCLAW_ROOT")); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "quickclaw", "env"),
			filepath.Join(home, ".quickclaw", ".env"),
		)
	}
	seen := map[string]struct{}{}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		abs := p
		if !filepath.IsAbs(abs) {
			if resolved, err := filepath.Abs(p); err == nil {
				abs = resolved
			}
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		_ = loadEnvFile(abs)
	}
}

func loadEnvFile(path string) error {
	vals, err := ReadEnvFile(path)
	if err != nil {
		return err
	}
	for key, val := range vals {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return nil
}

// ReadEnvFile parses KEY=VALUE lines. Comments, blank lines and lines
// without a key are skipped; a leading "export " and matching quotes
// around the value are removed.
func ReadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		i := strings.IndexRune(line, '=')
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		if key == "" {
			continue
		}
		out[key] = trimOptionalQuotes(strings.TrimSpace(line[i+1:]))
	}
	return out, sc.Err()
}

// UpdateEnvFile merges kv into the env file at path, keeping unrelated keys.
// Keys are written sorted; values with blanks or '#' are double-quoted.
func UpdateEnvFile(path string, kv map[string]string) error {
	current, err := ReadEnvFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if current == nil {
		current = map[string]string{}
	}
	for k, v := range kv {
		current[k] = v
	}
	keys := make([]string, 0, len(current))
	for k := range current {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := current[k]
		if strings.ContainsAny(v, " \t#") {
			v = `"` + v + `"`
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func trimOptionalQuotes(v string) string {
	if len(v) < 2 {
		return v
	}
	if strings.HasPrefix(v, "\"") && strings.HasSuffix(v, "\"") {
		return v[1 : len(v)-1]
	}
	if strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		return v[1 : len(v)-1]
	}
	return v
}
