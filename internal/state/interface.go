package state

import (
	"io"
	"time"

	"github.com/eEcoLiDAR/lcMacroPipeline/pkg/models"
)

// RunStore handles run persistence.
type RunStore interface {
	CreateRun(r *Run) error
	FinishRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

// TaskResultStore handles per-task outcome persistence.
type TaskResultStore interface {
	RecordTaskResult(tr *TaskResult) error
	ListTaskResults(runID string) ([]TaskResult, error)
}

// RecordStore handles retile record persistence.
type RecordStore interface {
	SaveRetileRecord(runID, taskID string, rec models.RetileRecord) error
	ListRetileRecords(runID string) ([]StoredRecord, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for run history persistence.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
	TaskResultStore
	RecordStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore      = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ RunStore        = (*DB)(nil)
	_ TaskResultStore = (*DB)(nil)
	_ RecordStore     = (*DB)(nil)
)
