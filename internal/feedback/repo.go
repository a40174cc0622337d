package feedback

import "context"

// Repo defines persistence operations for error reports. Create is
// append-only; UpdateStatus is the only mutation after submission.
type Repo interface {
	Create(ctx context.Context, report ErrorReport) error
	GetByID(ctx context.Context, reportID string) (ErrorReport, error)
	Query(ctx context.Context, q Query) ([]ErrorReport, error)
	UpdateStatus(ctx context.Context, reportID, status string) (ErrorReport, error)
	PriorityStats(ctx context.Context, topK int) ([]PriorityStat, error)
}
