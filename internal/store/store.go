// Package store persists authoritative records and reconciliation runs.
// The reconciliation core never touches this package directly; it operates
// on snapshots handed to it, and only the change-set applier writes back.
package store

import (
	"context"

	"github.com/honorwall/roster-cli/internal/model"
)

// PatchOp sets the given fields on one record. Only the named fields change;
// a patch is never a full-document overwrite, which makes re-applying a
// failed batch safe.
type PatchOp struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// RunFilter specifies criteria for listing reconciliation runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for records and runs.
type Store interface {
	// Records
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	ListRecords(ctx context.Context) ([]model.Record, error)
	CreateRecord(ctx context.Context, fields map[string]string) (string, error)
	// BatchPatch applies all ops in one transaction. Patches set only the
	// fields present in each op.
	BatchPatch(ctx context.Context, ops []PatchOp) error

	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SaveDifferential(ctx context.Context, runID string, diff *model.Differential) error
	SaveApplyResult(ctx context.Context, runID string, result *model.ApplyResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
