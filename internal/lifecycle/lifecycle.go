// Package lifecycle drives the gateway through stop, clean, reconfigure,
// start and verify. Runs are serialized per Controller and always complete
// once started; every step outcome is returned in the Report.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/locator"
	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/profile"
	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/quickclaw/quickclaw/internal/runner"
	"github.com/quickclaw/quickclaw/internal/timeline"
)

// ErrBusy is returned when ctx ends while waiting for another run.
var ErrBusy = errors.New("another gateway operation is in progress")

type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseStopping      Phase = "stopping"
	PhaseCleaning      Phase = "cleaning"
	PhaseReconfiguring Phase = "reconfiguring"
	PhaseStarting      Phase = "starting"
	PhaseVerifying     Phase = "verifying"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

const (
	StepStop       = "stop"
	StepClean      = "clean"
	StepConfig     = "config"
	StepPorts      = "ports"
	StepStart      = "start"
	StepConnecting = "connecting"

	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Step is one entry of the ordered run log.
type Step struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Features are optional extras written alongside the channel config.
type Features struct {
	Transcription bool `json:"transcription"`
	SpokenReplies bool `json:"spokenReplies"`
}

// DefaultFeatures turns on voice transcription and spoken replies.
func DefaultFeatures() Features {
	return Features{Transcription: true, SpokenReplies: true}
}

// Request names the profile a run acts on and the desired telegram state.
type Request struct {
	ProfileID    string
	Token        string
	UserID       string
	FreshInstall bool
	Features     Features
}

// CleanupResult is the outcome of one best-effort cleanup operation.
type CleanupResult struct {
	Target  string `json:"target"`
	Removed bool   `json:"removed,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Report is returned for every run, successful or not.
type Report struct {
	OK                bool               `json:"ok"`
	RunID             string             `json:"runId,omitempty"`
	ProfileID         string             `json:"profileId"`
	State             Phase              `json:"state"`
	GatewayRunning    bool               `json:"gatewayRunning"`
	TelegramConnected bool               `json:"telegramConnected"`
	BotInfo           *channels.BotInfo  `json:"botInfo,omitempty"`
	PairingInfo       *reconcile.Pairing `json:"pairingInfo,omitempty"`
	Steps             []Step             `json:"steps"`
	Cleanup           []CleanupResult    `json:"cleanup,omitempty"`
	Config            *reconcile.Result  `json:"config,omitempty"`
	Gateway           *probe.State       `json:"gateway,omitempty"`
	StartLog          []string           `json:"startLog"`
	RecentLog         []string           `json:"recentLog,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// Commands is the process surface a run drives. *runner.Runner implements it.
type Commands interface {
	Run(ctx context.Context, c runner.Cmd) runner.Result
	Spawn(proc runner.SpawnSpec) (int, error)
	PIDsOnPort(ctx context.Context, port int) []int
	PIDsMatching(ctx context.Context, pattern string) []int
}

type Prober interface {
	Probe(ctx context.Context) probe.State
}

// Telegram is the bot API surface used for draining and verification.
type Telegram interface {
	GetMe(ctx context.Context, token string) (channels.BotInfo, error)
	PendingUpdates(ctx context.Context, token string, limit int) ([]channels.PendingUpdate, error)
	Drain(ctx context.Context, token string) error
}

// Recorder persists run history. *timeline.TimelineService implements it.
type Recorder interface {
	StartRun(kind, profileID, state string, startedAt time.Time) (string, error)
	AddStep(runID, state string, step timeline.StepRecord) error
	FinishRun(runID, state, errorText string, finishedAt time.Time) error
}

// Deps wires a Controller. Commands builds a runner bound to a profile's
// environment; Prober defaults to probe.New over those commands.
type Deps struct {
	Config   *config.Config
	CLI      runner.CLI
	Commands func(profileEnv map[string]string) Commands
	Prober   func(r Commands) Prober
	Telegram Telegram
	Recorder Recorder
}

// Controller serializes lifecycle runs through a single-slot semaphore.
type Controller struct {
	cfg      *config.Config
	cli      runner.CLI
	commands func(map[string]string) Commands
	prober   func(Commands) Prober
	telegram Telegram
	recorder Recorder
	sem      chan struct{}
	now      func() time.Time
}

// Package seams, swapped in tests.
var (
	sleep = func(ctx context.Context, d time.Duration) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	killProcess      = runner.Kill
	terminateProcess = runner.Terminate
	processAlive     = runner.IsProcessAlive
	getpid           = os.Getpid
	getuid           = os.Getuid
	goos             = runtime.GOOS
	portListening    = runner.PortListening
)

const (
	stopSettle    = 1500 * time.Millisecond
	killSettle    = 2 * time.Second
	connectSettle = 5 * time.Second
	drainTimeout  = 5 * time.Second
	verifyTimeout = 8 * time.Second
)

func New(d Deps) *Controller {
	c := &Controller{
		cfg:      d.Config,
		cli:      d.CLI,
		commands: d.Commands,
		prober:   d.Prober,
		telegram: d.Telegram,
		recorder: d.Recorder,
		sem:      make(chan struct{}, 1),
		now:      time.Now,
	}
	if c.prober == nil {
		ports := d.Config.GatewayPorts()
		c.prober = func(r Commands) Prober { return probe.New(r, d.CLI, ports) }
	}
	return c
}

// env is the fixed environment profile paths derive from.
func (c *Controller) env() profile.Env {
	return profile.Env{Home: c.cfg.Home, Root: c.cfg.Root, StateDir: c.cfg.StateDir}
}

// target bundles everything derived from one profile id.
type target struct {
	id    string
	paths profile.Paths
	locs  []locator.Location
	cmds  Commands
	probe Prober
}

func (c *Controller) resolve(profileID string) target {
	if profileID == "" {
		profileID = profile.DefaultID
	}
	env := c.env()
	paths := profile.ResolvePaths(env, profileID)
	cmds := c.commands(profile.EnvVars(env, paths))
	return target{
		id:    profileID,
		paths: paths,
		locs:  locator.ForProfile(env, profileID, paths),
		cmds:  cmds,
		probe: c.prober(cmds),
	}
}

// Status probes the gateway for a profile without taking the run slot.
func (c *Controller) Status(ctx context.Context, profileID string) probe.State {
	return c.resolve(profileID).probe.Probe(ctx)
}

// acquire waits for the run slot. Waiting honours ctx; the returned context
// does not, so a started run always completes.
func (c *Controller) acquire(ctx context.Context) (context.Context, func(), error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
	return context.WithoutCancel(ctx), func() { <-c.sem }, nil
}

// run tracks one in-flight lifecycle run.
type run struct {
	c      *Controller
	rep    *Report
	phase  Phase
	logger *slog.Logger
}

func (c *Controller) begin(kind, profileID string) *run {
	r := &run{
		c:      c,
		rep:    &Report{ProfileID: profileID, State: PhaseIdle, Steps: []Step{}, StartLog: []string{}},
		phase:  PhaseIdle,
		logger: slog.With("run", kind, "profile", profileID),
	}
	if c.recorder != nil {
		id, err := c.recorder.StartRun(kind, profileID, string(PhaseIdle), c.now())
		if err != nil {
			r.logger.Warn("run history unavailable", "error", err)
		} else {
			r.rep.RunID = id
			r.logger = r.logger.With("runId", id)
		}
	}
	r.logger.Info("gateway lifecycle run started")
	return r
}

func (r *run) enter(p Phase) {
	r.phase = p
	r.rep.State = p
	r.logger.Debug("lifecycle phase", "phase", p)
}

func (r *run) step(name, status, detail string) {
	r.rep.Steps = append(r.rep.Steps, Step{Step: name, Status: status, Detail: detail})
	r.logger.Info("lifecycle step", "step", name, "status", status, "detail", detail)
	if r.c.recorder == nil || r.rep.RunID == "" {
		return
	}
	rec := timeline.StepRecord{Step: name, Status: status, Detail: detail, Timestamp: r.c.now()}
	if err := r.c.recorder.AddStep(r.rep.RunID, string(r.phase), rec); err != nil {
		r.logger.Warn("record step failed", "error", err)
	}
}

func (r *run) finish(ok bool, errText string) *Report {
	r.rep.OK = ok
	r.rep.Error = errText
	if ok {
		r.enter(PhaseDone)
	} else {
		r.enter(PhaseFailed)
	}
	if r.c.recorder != nil && r.rep.RunID != "" {
		if err := r.c.recorder.FinishRun(r.rep.RunID, string(r.phase), errText, r.c.now()); err != nil {
			r.logger.Warn("record run result failed", "error", err)
		}
	}
	r.logger.Info("gateway lifecycle run finished", "state", r.phase, "error", errText)
	return r.rep
}
