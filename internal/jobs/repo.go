package jobs

import (
	"context"
	"time"
)

// Repo defines persistence operations for analysis jobs. CommitStage
// is the only path that advances progress; it rejects stages that are
// not the immediate successor of the job's current stage with
// ErrStaleStage. Complete and Fail are mutually exclusive terminal
// transitions; calling either on an already-terminal job is a no-op
// that returns the existing terminal record.
type Repo interface {
	Create(ctx context.Context, job AnalysisJob) error
	GetByID(ctx context.Context, jobID string) (AnalysisJob, error)
	List(ctx context.Context, limit, offset int) ([]AnalysisJob, error)
	ListByBatch(ctx context.Context, batchID string) ([]AnalysisJob, error)
	ListCompletedBySource(ctx context.Context, sourceRef string, since time.Time) ([]AnalysisJob, error)
	Start(ctx context.Context, jobID string) error
	CommitStage(ctx context.Context, jobID string, output StageOutput) error
	Complete(ctx context.Context, jobID string, result *Result) (AnalysisJob, error)
	Fail(ctx context.Context, jobID, message string) (AnalysisJob, error)
}
