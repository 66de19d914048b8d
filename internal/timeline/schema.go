package timeline

import (
	"time"
)

const (
	KindActivate = "activate"
	KindRestart  = "restart"
	KindStop     = "stop"
	KindStart    = "start"
)

// Run is one recorded lifecycle run.
type Run struct {
	ID         int64        `json:"id"`
	RunID      string       `json:"runId"`
	Kind       string       `json:"kind"`
	ProfileID  string       `json:"profileId"`
	State      string       `json:"state"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
	Steps      []StepRecord `json:"steps,omitempty"`
}

// StepRecord is one step outcome inside a run, in append order.
type StepRecord struct {
	Seq       int       `json:"seq"`
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT UNIQUE NOT NULL,
	kind TEXT NOT NULL,
	profile_id TEXT NOT NULL,
	state TEXT NOT NULL,
	error_text TEXT DEFAULT '',
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile_id);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	step TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT DEFAULT '',
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_steps_run ON run_steps(run_id, seq);
`
