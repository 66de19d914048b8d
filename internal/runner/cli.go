package runner

import (
	"os"
	"strings"
	"time"
)

// CLI is how the openclaw command is invoked: the locally installed binary
// when present, otherwise through npx.
type CLI struct {
	Bin    string   `json:"bin"`
	Prefix []string `json:"prefix,omitempty"`
}

// ResolveCLI prefers localBin when it exists.
func ResolveCLI(localBin string) CLI {
	if localBin != "" {
		if _, err := os.Stat(localBin); err == nil {
			return CLI{Bin: localBin}
		}
	}
	return CLI{Bin: "npx", Prefix: []string{"openclaw"}}
}

// Command builds a Cmd for an openclaw subcommand.
func (c CLI) Command(timeout time.Duration, args ...string) Cmd {
	full := make([]string, 0, len(c.Prefix)+len(args))
	full = append(full, c.Prefix...)
	full = append(full, args...)
	return Cmd{Name: c.Bin, Args: full, Timeout: timeout}
}

// Spawn builds a SpawnSpec for an openclaw subcommand.
func (c CLI) Spawn(logPath, pidPath string, args ...string) SpawnSpec {
	cmd := c.Command(0, args...)
	return SpawnSpec{Name: cmd.Name, Args: cmd.Args, LogPath: logPath, PIDPath: pidPath}
}

func (c CLI) String() string {
	return strings.TrimSpace(c.Bin + " " + strings.Join(c.Prefix, " "))
}
