package store

import (
	"context"

	"github.com/sells-group/postcall-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history. Only metadata and
// results are persisted; transcripts never are, only their hash.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, transcriptHash string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.PipelineResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error)
	CompleteStage(ctx context.Context, stageID string, outcome *model.StageOutcome) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
