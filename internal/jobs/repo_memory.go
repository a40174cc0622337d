package jobs

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
// Writers are serialized per process; readers always observe the most
// recently committed write.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]AnalysisJob
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]AnalysisJob)}
}

// cloneJob deep-copies a job through its JSON form so the stored state
// never shares pointers with callers. Without this, a caller mutating a
// result it still holds (the validator corrects the analysis in place)
// would silently rewrite an already-committed stage output. The
// Postgres repo gets the same isolation from its jsonb round trip.
func cloneJob(job AnalysisJob) AnalysisJob {
	data, err := json.Marshal(job)
	if err != nil {
		return job
	}
	var out AnalysisJob
	if err := json.Unmarshal(data, &out); err != nil {
		return job
	}
	return out
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job AnalysisJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = cloneJob(job)
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisJob{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return AnalysisJob{}, ErrNotFound
	}
	return cloneJob(job), nil
}

// List returns jobs newest first with limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	jobs := make([]AnalysisJob, 0, len(r.byID))
	for _, j := range r.byID {
		jobs = append(jobs, cloneJob(j))
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if offset >= len(jobs) {
		return []AnalysisJob{}, nil
	}
	end := len(jobs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return jobs[offset:end], nil
}

// ListByBatch returns the jobs of one batch in submission order.
func (r *MemoryRepo) ListByBatch(ctx context.Context, batchID string) ([]AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if batchID == "" {
		return []AnalysisJob{}, nil
	}

	r.mu.RLock()
	jobs := []AnalysisJob{}
	for _, j := range r.byID {
		if j.BatchID == batchID {
			jobs = append(jobs, cloneJob(j))
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// ListCompletedBySource returns completed jobs for one source URL since
// the given time, oldest first.
func (r *MemoryRepo) ListCompletedBySource(ctx context.Context, sourceRef string, since time.Time) ([]AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	jobs := []AnalysisJob{}
	for _, j := range r.byID {
		if j.SourceRef != sourceRef || j.Status != StatusCompleted || j.CompletedAt == nil {
			continue
		}
		if j.CompletedAt.Before(since) {
			continue
		}
		jobs = append(jobs, cloneJob(j))
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CompletedAt.Equal(*jobs[j].CompletedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CompletedAt.Before(*jobs[j].CompletedAt)
	})
	return jobs, nil
}

// Start moves a queued job to running. Running is a no-op; terminal
// jobs are rejected.
func (r *MemoryRepo) Start(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return ErrTerminal
	}
	if job.Status == StatusQueued {
		job.Status = StatusRunning
		job.UpdatedAt = time.Now().UTC()
		r.byID[jobID] = job
	}
	return nil
}

// CommitStage appends a stage output and advances progress. The stage
// must be the immediate successor of the job's current stage.
func (r *MemoryRepo) CommitStage(ctx context.Context, jobID string, output StageOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return ErrTerminal
	}
	expected, ok := nextStage(job.Kind, job.Progress.Stage)
	if !ok || expected != output.Stage {
		return ErrStaleStage
	}

	if output.CommittedAt.IsZero() {
		output.CommittedAt = time.Now().UTC()
	}
	job.Status = StatusRunning
	job.StageOutputs = append(job.StageOutputs, output)
	if pct := StageWeight(output.Stage); pct > job.Progress.Percentage {
		job.Progress.Percentage = pct
	}
	job.Progress.Stage = output.Stage
	if output.Validation != nil {
		job.Validation = output.Validation
	}
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = cloneJob(job)
	return nil
}

// Complete marks the job completed with its final result. Terminal
// jobs are returned unchanged.
func (r *MemoryRepo) Complete(ctx context.Context, jobID string, result *Result) (AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisJob{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return AnalysisJob{}, ErrNotFound
	}
	if job.Terminal() {
		return cloneJob(job), nil
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.Progress = Progress{Stage: StatusCompleted, Percentage: 100}
	job.Result = result
	if result != nil && result.Validation != nil {
		job.Validation = result.Validation
	}
	job.UpdatedAt = now
	job.CompletedAt = &now
	job = cloneJob(job)
	r.byID[jobID] = job
	return cloneJob(job), nil
}

// Fail marks the job failed with a captured error description.
// Terminal jobs are returned unchanged.
func (r *MemoryRepo) Fail(ctx context.Context, jobID, message string) (AnalysisJob, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisJob{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return AnalysisJob{}, ErrNotFound
	}
	if job.Terminal() {
		return cloneJob(job), nil
	}
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.ErrorMessage = &message
	job.UpdatedAt = now
	job.CompletedAt = &now
	r.byID[jobID] = job
	return cloneJob(job), nil
}
