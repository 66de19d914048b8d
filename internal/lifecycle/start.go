package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/runner"
)

// startGateway spawns the gateway detached, waits the settle interval and
// probes it. The log records each action for the caller.
func (c *Controller) startGateway(ctx context.Context, t target) (probe.State, []string) {
	var log []string

	// The gateway refuses to start unless mode is local.
	res := reconcile.Apply(t.locs, reconcile.Patch{LocalMode: true, EnsureOnly: true, ExistingOnly: true})
	for _, l := range res.Locations {
		if l.Changed {
			log = append(log, "set gateway.mode=local in "+l.Path)
		}
	}

	if goos == "darwin" {
		log = append(log, c.bootoutLaunchAgent(ctx, t)...)
	}

	primary := c.cfg.Gateway.Port
	if pids := t.cmds.PIDsOnPort(ctx, primary); len(pids) > 0 {
		for _, pid := range pids {
			if pid != getpid() {
				_ = terminateProcess(pid)
			}
		}
		sleep(ctx, killSettle)
		log = append(log, fmt.Sprintf("cleared port %d", primary))
	}

	proc := c.cli.Spawn(c.cfg.GatewayLogPath(), c.cfg.GatewayPIDPath(), "gateway", "--port", strconv.Itoa(primary))
	proc.Dir = c.cfg.InstallDir()
	if pid, err := t.cmds.Spawn(proc); err != nil {
		log = append(log, "start err: "+truncate(err.Error(), 80))
	} else {
		log = append(log, "started gateway PID="+strconv.Itoa(pid))
	}

	sleep(ctx, c.cfg.Gateway.StartSettle)
	st := t.probe.Probe(ctx)
	log = append(log, "running: "+strconv.FormatBool(st.Running))
	if !st.Running {
		c.dropDeadPIDFile()
	}
	return st, log
}

// dropDeadPIDFile removes the pid file of a gateway that exited during start.
func (c *Controller) dropDeadPIDFile() {
	path := c.cfg.GatewayPIDPath()
	if pid, err := runner.ReadPIDFile(path); err == nil && !processAlive(pid) {
		_ = os.Remove(path)
	}
}

// telegramPatch is the desired channel state for a request.
func telegramPatch(req Request) reconcile.Patch {
	p := reconcile.Patch{
		Telegram:  &reconcile.TelegramPatch{BotToken: req.Token, UserID: req.UserID, Streaming: "partial"},
		LocalMode: true,
	}
	if req.Features.Transcription {
		p.Audio = reconcile.DefaultAudio()
	}
	if req.Features.SpokenReplies {
		p.TTS = reconcile.DefaultTTS()
	}
	return p
}

// reconfigure registers the token with the CLI and writes the patch to
// every location. It fails when nothing was written or when the config
// the gateway reads was not written.
func (c *Controller) reconfigure(ctx context.Context, t target, req Request) (reconcile.Result, error) {
	if req.Token != "" {
		res := t.cmds.Run(ctx, c.cli.Command(c.cfg.Gateway.CommandTimeout,
			"channels", "add", "--channel", "telegram", "--token", req.Token))
		if !res.OK {
			r := strings.TrimSpace(res.Err)
			if out := truncate(res.Output(), 200); out != "" {
				r = out
			}
			slog.Warn("channels add failed, continuing with direct config write", "detail", r)
		}
	}

	result := reconcile.Apply(t.locs, telegramPatch(req))
	if err := result.Err(); err != nil {
		return result, err
	}
	authoritative := profile.GatewayConfigPath(t.paths)
	if lr, ok := result.Lookup(authoritative); !ok || !lr.Written {
		detail := "skipped"
		if lr.Err != "" {
			detail = lr.Err
		}
		return result, fmt.Errorf("gateway config %s not written: %s", authoritative, detail)
	}

	if req.UserID != "" {
		if _, _, err := reconcile.AddAllowFrom(t.paths.ConfigDir, req.UserID); err != nil {
			slog.Warn("allowlist update failed", "error", err)
		}
	}
	return result, nil
}

// reenforce fills values the starting gateway may have dropped, without
// reopening a locked bot.
func (c *Controller) reenforce(t target, req Request) {
	p := telegramPatch(req)
	p.EnsureOnly = true
	p.ExistingOnly = true
	reconcile.Apply(t.locs, p)
}

// connect checks the bot token against Telegram. Connection is reported,
// never required.
func (c *Controller) connect(ctx context.Context, r *run, t target, token string) {
	sleep(ctx, connectSettle)

	doc, _ := reconcile.Read(profile.GatewayConfigPath(t.paths))
	pairing := reconcile.TelegramPairing(doc)
	r.rep.PairingInfo = &pairing

	if token == "" || c.telegram == nil {
		r.step(StepConnecting, StatusDone, "no telegram token to verify")
		return
	}
	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	var problems []string
	if info, err := c.telegram.GetMe(vctx, token); err == nil {
		r.rep.BotInfo = &info
	} else {
		problems = append(problems, err.Error())
	}
	uctx, ucancel := context.WithTimeout(ctx, verifyTimeout)
	defer ucancel()
	if _, err := c.telegram.PendingUpdates(uctx, token, 1); err == nil {
		r.rep.TelegramConnected = true
	} else {
		problems = append(problems, err.Error())
	}

	detail := "telegram connected"
	if r.rep.BotInfo != nil && r.rep.BotInfo.Username != "" {
		detail += " as @" + r.rep.BotInfo.Username
	}
	if !r.rep.TelegramConnected {
		detail = "telegram not reachable: " + strings.Join(problems, "; ")
	}
	r.step(StepConnecting, StatusDone, detail)
}
