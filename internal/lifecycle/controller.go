package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/runner"
	"github.com/quickclaw/quickclaw/internal/timeline"
)

// Activate stops the gateway, optionally wipes cached state, writes the
// telegram config everywhere, starts the gateway and verifies the bot.
func (c *Controller) Activate(ctx context.Context, req Request) (*Report, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	t := c.resolve(req.ProfileID)
	r := c.begin(timeline.KindActivate, t.id)

	r.enter(PhaseStopping)
	r.rep.StartLog = append(r.rep.StartLog, c.stopGateway(ctx, t)...)
	r.step(StepStop, StatusDone, "")

	if req.FreshInstall {
		r.enter(PhaseCleaning)
		r.rep.Cleanup = c.clean(ctx, t, req.Token)
		r.step(StepClean, StatusDone, cleanupSummary(r.rep.Cleanup))
	}

	r.enter(PhaseReconfiguring)
	res, err := c.reconfigure(ctx, t, req)
	r.rep.Config = &res
	if err != nil {
		r.step(StepConfig, StatusFailed, err.Error())
		return r.finish(false, "Gateway config could not be written"), nil
	}
	r.step(StepConfig, StatusDone, configSummary(res.Locations))

	r.enter(PhaseStarting)
	st, log := c.startGateway(ctx, t)
	r.rep.StartLog = append(r.rep.StartLog, log...)
	r.enter(PhaseVerifying)
	r.rep.Gateway = &st
	r.rep.GatewayRunning = st.Running
	if !st.Running {
		r.step(StepStart, StatusFailed, "gateway not reachable after start")
		return r.finish(false, "Gateway failed to start"), nil
	}
	r.step(StepStart, StatusDone, "")

	c.reenforce(t, req)
	c.connect(ctx, r, t, req.Token)
	return r.finish(true, ""), nil
}

// Restart hard-restarts the gateway without touching channel config.
func (c *Controller) Restart(ctx context.Context, req Request) (*Report, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	t := c.resolve(req.ProfileID)
	r := c.begin(timeline.KindRestart, t.id)

	r.enter(PhaseStopping)
	r.rep.StartLog = append(r.rep.StartLog, c.stopGateway(ctx, t)...)
	r.step(StepStop, StatusDone, "")

	var busy []string
	for _, port := range c.cfg.GatewayPorts() {
		if portListening(port) {
			busy = append(busy, strconv.Itoa(port))
		}
	}
	if len(busy) > 0 {
		r.step(StepPorts, StatusFailed, "still in use: "+strings.Join(busy, ", "))
	} else {
		r.step(StepPorts, StatusDone, "ports free")
	}

	r.enter(PhaseStarting)
	st, log := c.startGateway(ctx, t)
	r.rep.StartLog = append(r.rep.StartLog, log...)
	r.enter(PhaseVerifying)
	r.rep.Gateway = &st
	r.rep.GatewayRunning = st.Running
	r.rep.RecentLog = runner.TailFile(c.cfg.GatewayLogPath(), 10)
	if !st.Running {
		r.step(StepStart, StatusFailed, "gateway not reachable after start")
		return r.finish(false, "Gateway failed to start"), nil
	}
	r.step(StepStart, StatusDone, "")
	return r.finish(true, ""), nil
}

// Stop stops the gateway and reports whether anything is still listening.
func (c *Controller) Stop(ctx context.Context, profileID string) (*Report, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	t := c.resolve(profileID)
	r := c.begin(timeline.KindStop, t.id)
	r.enter(PhaseStopping)
	r.rep.StartLog = append(r.rep.StartLog, c.stopGateway(ctx, t)...)
	r.step(StepStop, StatusDone, "")

	r.enter(PhaseVerifying)
	st := t.probe.Probe(ctx)
	r.rep.Gateway = &st
	r.rep.GatewayRunning = st.Running
	if st.Running {
		return r.finish(false, "Gateway is still running"), nil
	}
	return r.finish(true, ""), nil
}

// Start starts the gateway unless it is already running.
func (c *Controller) Start(ctx context.Context, profileID string) (*Report, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	t := c.resolve(profileID)
	r := c.begin(timeline.KindStart, t.id)
	r.enter(PhaseStarting)
	if st := t.probe.Probe(ctx); st.Running {
		r.rep.Gateway = &st
		r.rep.GatewayRunning = true
		r.step(StepStart, StatusSkipped, "already running")
		return r.finish(true, ""), nil
	}
	st, log := c.startGateway(ctx, t)
	r.rep.StartLog = append(r.rep.StartLog, log...)
	r.enter(PhaseVerifying)
	r.rep.Gateway = &st
	r.rep.GatewayRunning = st.Running
	if !st.Running {
		r.rep.RecentLog = runner.TailFile(c.cfg.GatewayLogPath(), 10)
		r.step(StepStart, StatusFailed, "gateway not reachable after start")
		return r.finish(false, "Gateway failed to start"), nil
	}
	r.step(StepStart, StatusDone, "")
	return r.finish(true, ""), nil
}

func configSummary(locs []reconcile.LocationResult) string {
	written, failed := 0, 0
	for _, l := range locs {
		switch {
		case l.Err != "":
			failed++
		case l.Written:
			written++
		}
	}
	if failed == 0 {
		return fmt.Sprintf("%d locations written", written)
	}
	return fmt.Sprintf("%d locations written, %d failed", written, failed)
}
