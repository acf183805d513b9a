package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eEcoLiDAR/lcMacroPipeline/pkg/models"
)

// RunStatus represents the status of a batch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one fan-out of retiling jobs.
type Run struct {
	ID         string     `json:"id"`
	Manifest   string     `json:"manifest"`
	Mode       string     `json:"mode"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// TaskResult is the stored outcome of one task of a run.
type TaskResult struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Index     int           `json:"index"`
	Name      string        `json:"name"`
	Kind      string        `json:"kind"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// OK reports whether the task succeeded.
func (r TaskResult) OK() bool { return r.Error == "" }

// StoredRecord is a retile record attached to a run.
type StoredRecord struct {
	RunID  string `json:"run_id"`
	TaskID string `json:"task_id"`
	models.RetileRecord
	CreatedAt time.Time `json:"created_at"`
}

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// Run operations

// CreateRun inserts a new run. An empty ID is filled in, as are a zero
// StartedAt and an empty Status.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, manifest, mode, total, succeeded, failed, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Manifest, r.Mode, r.Total, r.Succeeded, r.Failed, string(r.Status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun stores the final counts and status of r and stamps FinishedAt.
func (db *DB) FinishRun(r *Run) error {
	now := time.Now()
	r.FinishedAt = &now

	res, err := db.Exec(`
		UPDATE runs SET total = ?, succeeded = ?, failed = ?, status = ?, finished_at = ?
		WHERE id = ?
	`, r.Total, r.Succeeded, r.Failed, string(r.Status), formatTime(now), r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: no run %s", r.ID)
	}
	return nil
}

const runColumns = `id, manifest, mode, total, succeeded, failed, status, started_at, finished_at`

// GetRun retrieves a run by ID. Returns nil, nil when there is none.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	if err := s.Scan(&r.ID, &r.Manifest, &r.Mode, &r.Total, &r.Succeeded, &r.Failed, &r.Status, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// Task result operations

// RecordTaskResult stores the outcome of one task.
func (db *DB) RecordTaskResult(tr *TaskResult) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO task_results (id, run_id, idx, name, kind, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tr.ID, tr.RunID, tr.Index, tr.Name, tr.Kind, tr.Error, tr.Duration.Milliseconds(), formatTime(tr.CreatedAt))
	if err != nil {
		return fmt.Errorf("record task result: %w", err)
	}
	return nil
}

// ListTaskResults returns the task outcomes of a run in submission order.
func (db *DB) ListTaskResults(runID string) ([]TaskResult, error) {
	rows, err := db.Query(`
		SELECT id, run_id, idx, name, kind, error, duration_ms, created_at
		FROM task_results WHERE run_id = ?
		ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list task results: %w", err)
	}
	defer rows.Close()

	var results []TaskResult
	for rows.Next() {
		var tr TaskResult
		var durationMS int64
		var createdAt string
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.Index, &tr.Name, &tr.Kind, &tr.Error, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task result: %w", err)
		}
		tr.Duration = time.Duration(durationMS) * time.Millisecond
		tr.CreatedAt, _ = parseTime(createdAt)
		results = append(results, tr)
	}
	return results, rows.Err()
}

// Retile record operations

// SaveRetileRecord attaches rec to a run.
func (db *DB) SaveRetileRecord(runID, taskID string, rec models.RetileRecord) error {
	cells := rec.RedistributedTo
	if cells == nil {
		cells = []string{}
	}
	cellsJSON, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("marshal redistributed_to: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO retile_records (run_id, task_id, file, redistributed_to, validated, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, taskID, rec.File, string(cellsJSON), rec.Validated, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save retile record: %w", err)
	}
	return nil
}

// ListRetileRecords returns the records of a run in insertion order.
func (db *DB) ListRetileRecords(runID string) ([]StoredRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, task_id, file, redistributed_to, validated, created_at
		FROM retile_records WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list retile records: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		var cellsJSON, createdAt string
		if err := rows.Scan(&sr.RunID, &sr.TaskID, &sr.File, &cellsJSON, &sr.Validated, &createdAt); err != nil {
			return nil, fmt.Errorf("scan retile record: %w", err)
		}
		if err := json.Unmarshal([]byte(cellsJSON), &sr.RedistributedTo); err != nil {
			return nil, fmt.Errorf("unmarshal redistributed_to: %w", err)
		}
		sr.CreatedAt, _ = parseTime(createdAt)
		records = append(records, sr)
	}
	return records, rows.Err()
}
