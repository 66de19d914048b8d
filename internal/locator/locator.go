// Package locator enumerates the openclaw.json files a profile's gateway
// configuration may live in. Reads use the first existing path; writes fan
// out to every location.
package locator

import (
	"os"
	"path/filepath"

	"github.com/quickclaw/quickclaw/internal/profile"
)

// ConfigFile is the gateway's master config file name.
const ConfigFile = "openclaw.json"

const (
	LabelState           = "state"
	LabelLegacy          = "legacy"
	LabelProfileState    = "profile-state"
	LabelProfileLegacy   = "profile-legacy"
	LabelProfileClawdbot = "profile-clawdbot"
	LabelProfile         = "profile"
)

// Location is one candidate config path. Creatable locations are created
// from a skeleton when missing; the others are only written if they exist.
type Location struct {
	Path      string `json:"path"`
	Label     string `json:"label"`
	Creatable bool   `json:"creatable"`
}

// Locate returns the ordered, duplicate-free candidate list for a profile.
// It never touches the filesystem.
func Locate(env profile.Env, profileID string) []Location {
	var locs []Location
	add := func(dir, label string, creatable bool) {
		if dir == "" {
			return
		}
		locs = appendUnique(locs, Location{
			Path:      filepath.Clean(filepath.Join(dir, ConfigFile)),
			Label:     label,
			Creatable: creatable,
		})
	}

	add(env.StateDir, LabelState, true)
	add(env.OpenclawDir(), LabelLegacy, true)
	if suffix := profile.Suffix(profileID); suffix != "" {
		add(env.StateDir+suffix, LabelProfileState, true)
		add(env.OpenclawDir()+suffix, LabelProfileLegacy, false)
		add(env.ClawdbotDir()+suffix, LabelProfileClawdbot, false)
	} else {
		add(env.ClawdbotDir(), LabelProfileClawdbot, false)
	}
	return locs
}

// ForProfile is Locate plus the profile's resolved config directory, which
// is always writable because the gateway is pointed at it.
func ForProfile(env profile.Env, profileID string, paths profile.Paths) []Location {
	locs := Locate(env, profileID)
	target := filepath.Clean(profile.GatewayConfigPath(paths))
	for i := range locs {
		if locs[i].Path == target {
			locs[i].Creatable = true
			return locs
		}
	}
	return append(locs, Location{Path: target, Label: LabelProfile, Creatable: true})
}

// Paths flattens locations to their file paths.
func Paths(locs []Location) []string {
	out := make([]string, 0, len(locs))
	for _, l := range locs {
		out = append(out, l.Path)
	}
	return out
}

// Dirs returns the distinct directories holding the locations.
func Dirs(locs []Location) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range locs {
		d := filepath.Dir(l.Path)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ReadPath returns the first existing location, else the first candidate.
func ReadPath(locs []Location) string {
	for _, l := range locs {
		if _, err := os.Stat(l.Path); err == nil {
			return l.Path
		}
	}
	if len(locs) == 0 {
		return ""
	}
	return locs[0].Path
}

func appendUnique(locs []Location, l Location) []Location {
	for _, existing := range locs {
		if existing.Path == l.Path {
			return locs
		}
	}
	return append(locs, l)
}
