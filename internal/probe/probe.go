// Package probe decides whether the gateway is up by OR-ing port liveness
// with the CLI's own status report.
package probe

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/quickclaw/quickclaw/internal/runner"
)

// StatusTimeout bounds the `gateway status` call.
const StatusTimeout = 15 * time.Second

var runningPattern = regexp.MustCompile(`(?i)Runtime:\s*running|listening on ws://127\.0\.0\.1:18789|gateway\s+running`)

// CommandRunner is the subset of runner.Runner the probe needs.
type CommandRunner interface {
	Run(ctx context.Context, c runner.Cmd) runner.Result
}

// Signals are the raw observations behind a State.
type Signals struct {
	Ports        map[int]bool `json:"ports"`
	StatusText   string       `json:"statusText"`
	LooksRunning bool         `json:"looksRunning"`
}

// State is a live, unpersisted view of the gateway.
type State struct {
	Running bool    `json:"running"`
	Signals Signals `json:"signals"`
}

// Listening reports the observation for one port.
func (s State) Listening(port int) bool {
	return s.Signals.Ports[port]
}

type Prober struct {
	runner    CommandRunner
	cli       runner.CLI
	ports     []int
	timeout   time.Duration
	portCheck func(port int) bool
}

func New(r CommandRunner, cli runner.CLI, ports []int) *Prober {
	return &Prober{
		runner:    r,
		cli:       cli,
		ports:     ports,
		timeout:   StatusTimeout,
		portCheck: runner.PortListening,
	}
}

// Probe gathers every signal concurrently. It always returns a State; CLI
// failures only clear the status signal.
func (p *Prober) Probe(ctx context.Context) State {
	st := State{Signals: Signals{Ports: make(map[int]bool, len(p.ports))}}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, port := range p.ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			up := p.portCheck(port)
			mu.Lock()
			st.Signals.Ports[port] = up
			mu.Unlock()
		}(port)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		res := p.runner.Run(ctx, p.cli.Command(p.timeout, "gateway", "status"))
		text := res.Combined()
		if text == "" && res.Err != "" {
			text = res.Err
		}
		mu.Lock()
		st.Signals.StatusText = text
		st.Signals.LooksRunning = LooksRunning(text)
		mu.Unlock()
	}()
	wg.Wait()

	st.Running = st.Signals.LooksRunning
	for _, up := range st.Signals.Ports {
		st.Running = st.Running || up
	}
	return st
}

// LooksRunning matches the phrasings openclaw uses for a live gateway.
func LooksRunning(text string) bool {
	return runningPattern.MatchString(text)
}
