package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListSynthesizesDefaultForCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte("[oops"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewStore(path)

	list, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != DefaultID || !list[0].Active {
		t.Fatalf("expected synthesized default profile, got %+v", list)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"id": "default"`) {
		t.Fatalf("expected default profile persisted, got %s", data)
	}
}

func TestListNormalizesActiveFlags(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"none flagged prefers default", `[{"id":"p-1"},{"id":"default"}]`, DefaultID},
		{"none flagged without default", `[{"id":"p-1"},{"id":"p-2"}]`, "p-1"},
		{"several flagged keeps first", `[{"id":"default"},{"id":"p-1","active":true},{"id":"p-2","active":true}]`, "p-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profiles.json")
			if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			store := NewStore(path)
			list, err := store.List()
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var active []string
			for _, p := range list {
				if p.Active {
					active = append(active, p.ID)
				}
			}
			if len(active) != 1 || active[0] != tc.want {
				t.Fatalf("expected only %s active, got %v", tc.want, active)
			}
			got, err := store.Active()
			if err != nil || got.ID != tc.want {
				t.Fatalf("active: got %+v (%v)", got, err)
			}
		})
	}
}

func TestSetActiveKeepsExactlyOneActive(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "profiles.json"))
	created, err := store.Create("Work")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(created.ID, "p-") || len(created.ID) != 10 {
		t.Fatalf("unexpected profile id %q", created.ID)
	}

	if _, err := store.SetActive(created.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	list, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	active := 0
	for _, p := range list {
		if p.Active {
			active++
			if p.ID != created.ID {
				t.Fatalf("expected %s active, got %s", created.ID, p.ID)
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active profile, got %d", active)
	}

	got, err := store.Active()
	if err != nil || got.ID != created.ID {
		t.Fatalf("active mismatch: %+v %v", got, err)
	}
	if _, err := store.SetActive("missing"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestSuffixStripsReservedPrefix(t *testing.T) {
	cases := map[string]string{
		"default": "",
		"p-1234":  "-1234",
		"work":    "-work",
	}
	for id, want := range cases {
		if got := Suffix(id); got != want {
			t.Fatalf("Suffix(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestResolvePathsDefaultProfile(t *testing.T) {
	tmp := t.TempDir()
	env := Env{Home: filepath.Join(tmp, "home"), Root: filepath.Join(tmp, "root"), StateDir: filepath.Join(tmp, "root", "openclaw-state")}

	p := ResolvePaths(env, DefaultID)
	if p.ConfigDir != env.StateDir {
		t.Fatalf("expected state dir fallback, got %q", p.ConfigDir)
	}
	if p.Workspace != env.Root {
		t.Fatalf("expected root workspace fallback, got %q", p.Workspace)
	}

	if err := os.MkdirAll(env.OpenclawDir(), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p = ResolvePaths(env, DefaultID)
	if p.ConfigDir != env.OpenclawDir() {
		t.Fatalf("expected ~/.openclaw, got %q", p.ConfigDir)
	}

	if err := os.MkdirAll(env.StateDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p = ResolvePaths(env, DefaultID)
	if p.ConfigDir != env.StateDir {
		t.Fatalf("expected state dir to win, got %q", p.ConfigDir)
	}
	if p.EnvPath != filepath.Join(env.StateDir, ".env") || p.ConfigJSON != filepath.Join(env.StateDir, "clawdbot.json") {
		t.Fatalf("unexpected derived files %+v", p)
	}
}

func TestResolvePathsSuffixedProfile(t *testing.T) {
	tmp := t.TempDir()
	env := Env{Home: filepath.Join(tmp, "home"), Root: tmp, StateDir: filepath.Join(tmp, "state")}

	p := ResolvePaths(env, "p-1234")
	if p.ConfigDir != env.ClawdbotDir()+"-1234" {
		t.Fatalf("expected clawdbot fallback, got %q", p.ConfigDir)
	}
	if p.Workspace != filepath.Join(env.StateDir, "workspace-1234") {
		t.Fatalf("unexpected workspace %q", p.Workspace)
	}

	if err := os.MkdirAll(env.StateDir+"-1234", 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p = ResolvePaths(env, "p-1234")
	if p.ConfigDir != env.StateDir+"-1234" {
		t.Fatalf("expected state suffixed dir, got %q", p.ConfigDir)
	}

	vars := EnvVars(env, p)
	if vars["OPENCLAW_CONFIG_PATH"] != filepath.Join(env.StateDir+"-1234", "openclaw.json") {
		t.Fatalf("unexpected config path var %q", vars["OPENCLAW_CONFIG_PATH"])
	}
	if vars["CLAWDBOT_CONFIG_DIR"] != p.ConfigDir || vars["OPENCLAW_STATE_DIR"] != env.StateDir {
		t.Fatalf("unexpected env vars %#v", vars)
	}
}

func TestSoulPathPrefersExistingFile(t *testing.T) {
	tmp := t.TempDir()
	p := Paths{ConfigDir: filepath.Join(tmp, "cfg"), Workspace: filepath.Join(tmp, "ws")}
	if got := SoulPath(p, ""); got != filepath.Join(p.Workspace, "soul.md") {
		t.Fatalf("unexpected default soul path %q", got)
	}
	if err := os.MkdirAll(p.ConfigDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(p.ConfigDir, "soul.md"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := SoulPath(p, ""); got != filepath.Join(p.ConfigDir, "soul.md") {
		t.Fatalf("expected config dir soul, got %q", got)
	}
}
