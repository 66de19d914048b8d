package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quickclaw/quickclaw/internal/runner"
)

// launchAgentLabel is the LaunchAgent older installers registered.
const launchAgentLabel = "ai.openclaw.gateway"

// cleanDirs are gateway state directories removed on a fresh install.
var cleanDirs = []string{"telegram", "devices", "completions", "cron", "media"}

// stopGateway asks the gateway to stop, then kills whatever still holds its
// ports or matches its command line. It never fails; the returned log lists
// what was done.
func (c *Controller) stopGateway(ctx context.Context, t target) []string {
	var log []string
	res := t.cmds.Run(ctx, c.cli.Command(c.cfg.Gateway.StopTimeout, "gateway", "stop"))
	if out := runner.CleanOutput(res.Output()); out != "" {
		log = append(log, "stop: "+truncate(out, 100))
	} else if !res.OK {
		log = append(log, "stop failed: "+truncate(res.Err, 80))
	}
	sleep(ctx, stopSettle)

	if goos == "darwin" {
		log = append(log, c.bootoutLaunchAgent(ctx, t)...)
	}

	self := getpid()
	seen := map[int]struct{}{}
	kill := func(pid int, why string) {
		if pid <= 0 || pid == self {
			return
		}
		if _, ok := seen[pid]; ok {
			return
		}
		seen[pid] = struct{}{}
		if err := killProcess(pid); err != nil {
			return
		}
		log = append(log, fmt.Sprintf("killed pid %d (%s)", pid, why))
	}
	for _, port := range c.cfg.GatewayPorts() {
		for _, pid := range t.cmds.PIDsOnPort(ctx, port) {
			kill(pid, "port "+strconv.Itoa(port))
		}
	}
	gateways := map[int]struct{}{}
	for _, pid := range t.cmds.PIDsMatching(ctx, c.cfg.Gateway.ProcessMatch) {
		gateways[pid] = struct{}{}
		kill(pid, "openclaw gateway")
	}
	log = append(log, c.clearPIDFile(gateways, kill)...)
	sleep(ctx, killSettle)
	return log
}

// clearPIDFile kills the recorded pid only while it is alive and still
// looks like a gateway, then drops the file. Pids are reused after exit or
// reboot.
func (c *Controller) clearPIDFile(gateways map[int]struct{}, kill func(pid int, why string)) []string {
	path := c.cfg.GatewayPIDPath()
	pid, err := runner.ReadPIDFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(path)
		}
		return nil
	}
	var log []string
	_, isGateway := gateways[pid]
	if isGateway && processAlive(pid) {
		kill(pid, "pid file")
	} else {
		log = append(log, fmt.Sprintf("ignored stale pid file (pid %d)", pid))
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log = append(log, "pid file cleanup: "+truncate(err.Error(), 60))
	}
	return log
}

func (c *Controller) bootoutLaunchAgent(ctx context.Context, t target) []string {
	var log []string
	t.cmds.Run(ctx, runner.Cmd{
		Name:    "launchctl",
		Args:    []string{"bootout", fmt.Sprintf("gui/%d/%s", getuid(), launchAgentLabel)},
		Timeout: 10 * time.Second,
	})
	plist := filepath.Join(c.cfg.Home, "Library", "LaunchAgents", launchAgentLabel+".plist")
	if err := os.Remove(plist); err == nil {
		log = append(log, "removed stale LaunchAgent")
	} else if !os.IsNotExist(err) {
		log = append(log, "launchagent cleanup: "+truncate(err.Error(), 60))
	}
	return log
}

// cleanRoots are the directories whose cached state a fresh install drops.
func (c *Controller) cleanRoots(t target) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(dir string) {
		if dir == "" {
			return
		}
		dir = filepath.Clean(dir)
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		out = append(out, dir)
	}
	add(c.env().OpenclawDir())
	add(c.cfg.StateDir)
	add(t.paths.ConfigDir)
	for _, l := range t.locs {
		add(filepath.Dir(l.Path))
	}
	return out
}

// clean runs every cleanup operation and collects their results.
func (c *Controller) clean(ctx context.Context, t target, token string) []CleanupResult {
	var results []CleanupResult
	for _, root := range c.cleanRoots(t) {
		for _, sub := range cleanDirs {
			dir := filepath.Join(root, sub)
			if _, err := os.Stat(dir); err != nil {
				continue
			}
			r := CleanupResult{Target: dir}
			if err := os.RemoveAll(dir); err != nil {
				r.Err = err.Error()
			} else {
				r.Removed = true
			}
			results = append(results, r)
		}
	}
	if token != "" && c.telegram != nil {
		r := CleanupResult{Target: "telegram pending updates"}
		dctx, cancel := context.WithTimeout(ctx, drainTimeout)
		if err := c.telegram.Drain(dctx, token); err != nil {
			r.Err = err.Error()
		} else {
			r.Removed = true
		}
		cancel()
		results = append(results, r)
	}
	return results
}

func cleanupSummary(results []CleanupResult) string {
	removed, failed := 0, 0
	for _, r := range results {
		if r.Err != "" {
			failed++
		} else if r.Removed {
			removed++
		}
	}
	if failed == 0 {
		return fmt.Sprintf("%d cleared", removed)
	}
	return fmt.Sprintf("%d cleared, %d failed", removed, failed)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
