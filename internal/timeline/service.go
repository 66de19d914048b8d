// Package timeline keeps a SQLite history of gateway lifecycle runs.
package timeline

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

type TimelineService struct {
	db *sql.DB
}

func NewTimelineService(dbPath string) (*TimelineService, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create timeline dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &TimelineService{db: db}, nil
}

func (s *TimelineService) DB() *sql.DB { return s.db }

func (s *TimelineService) Close() error {
	return s.db.Close()
}

func newRunID() string {
	return "run-" + uuid.NewString()
}

// StartRun inserts a run in its initial state and returns its id.
func (s *TimelineService) StartRun(kind, profileID, state string, startedAt time.Time) (string, error) {
	runID := newRunID()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, kind, profile_id, state, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, kind, profileID, state, startedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// AddStep appends a step outcome and moves the run to state.
func (s *TimelineService) AddStep(runID, state string, step StepRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM run_steps WHERE run_id = ?`, runID).Scan(&seq); err != nil {
		return err
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}
	if _, err := tx.Exec(
		`INSERT INTO run_steps (run_id, seq, step, status, detail, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, seq, step.Step, step.Status, step.Detail, step.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	res, err := tx.Exec(`UPDATE runs SET state = ? WHERE run_id = ?`, state, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}

// FinishRun stores the terminal state.
func (s *TimelineService) FinishRun(runID, state, errorText string, finishedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE runs SET state = ?, error_text = ?, finished_at = ? WHERE run_id = ?`,
		state, errorText, finishedAt.UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun returns a run with its steps.
func (s *TimelineService) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT id, run_id, kind, profile_id, state, COALESCE(error_text, ''), started_at, finished_at
		FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	steps, err := s.steps(runID)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	return run, nil
}

// ListRuns returns the newest runs first, optionally for one profile.
func (s *TimelineService) ListRuns(profileID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, run_id, kind, profile_id, state, COALESCE(error_text, ''), started_at, finished_at FROM runs`
	var args []any
	if profileID != "" {
		query += ` WHERE profile_id = ?`
		args = append(args, profileID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (s *TimelineService) steps(runID string) ([]StepRecord, error) {
	rows, err := s.db.Query(`SELECT seq, step, status, COALESCE(detail, ''), timestamp
		FROM run_steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var st StepRecord
		if err := rows.Scan(&st.Seq, &st.Step, &st.Status, &st.Detail, &st.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var finished sql.NullTime
	if err := sc.Scan(&run.ID, &run.RunID, &run.Kind, &run.ProfileID, &run.State, &run.Error, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
