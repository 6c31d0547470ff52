// Package store keeps a ledger of collection runs and the entries each run
// skipped. The JSON stores stay the source of truth for collected data; the
// ledger only answers "what happened" across runs.
package store

import (
	"context"

	"github.com/rseng/rseng-activity/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	OutDir string          `json:"out_dir,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Ledger defines the persistence interface for run bookkeeping.
type Ledger interface {
	// Runs
	CreateRun(ctx context.Context, outDir string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Skips
	RecordSkip(ctx context.Context, rec model.SkipRecord) error
	ListSkips(ctx context.Context, runID string) ([]model.SkipRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// RunRecorder records skips against a single run.
type RunRecorder struct {
	Ledger Ledger
	RunID  string
}

// RecordSkip stamps rec with the run ID and stores it.
func (r *RunRecorder) RecordSkip(ctx context.Context, rec model.SkipRecord) error {
	rec.RunID = r.RunID
	return r.Ledger.RecordSkip(ctx, rec)
}
