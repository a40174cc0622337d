package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, source_ref, kind, status, stage, percentage, stage_outputs, result, validation, error_message, created_at, updated_at, completed_at, batch_id`

// validJobID reports whether the id can be cast to uuid. Queries cast
// id parameters with ::uuid, so a malformed id must be rejected here
// as not-found rather than surfacing as a Postgres cast error. Keeps
// the memory and Postgres repos agreeing on bogus ids.
func validJobID(id string) bool {
	return uuid.Validate(id) == nil
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job AnalysisJob) error {
	const query = `
INSERT INTO analysis_jobs (
	id, source_ref, kind, status, stage, percentage, stage_outputs, created_at, updated_at, batch_id
)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, NULLIF($10, '')::uuid)`
	outputs, err := marshalJSONB(job.StageOutputs)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		job.SourceRef,
		job.Kind,
		job.Status,
		job.Progress.Stage,
		job.Progress.Percentage,
		outputs,
		job.CreatedAt,
		job.UpdatedAt,
		job.BatchID,
	)
	return err
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (AnalysisJob, error) {
	if !validJobID(jobID) {
		return AnalysisJob{}, ErrNotFound
	}
	query := `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE id = $1
LIMIT 1`
	return scanJob(r.DB.QueryRowContext(ctx, query, jobID))
}

// List lists jobs ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]AnalysisJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `
SELECT ` + jobColumns + `
FROM analysis_jobs
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListByBatch returns the jobs of one batch in submission order.
func (r *PGRepo) ListByBatch(ctx context.Context, batchID string) ([]AnalysisJob, error) {
	if !validJobID(batchID) {
		return []AnalysisJob{}, nil
	}
	query := `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE batch_id = $1::uuid
ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListCompletedBySource returns completed jobs for one source URL since
// the given time, oldest first.
func (r *PGRepo) ListCompletedBySource(ctx context.Context, sourceRef string, since time.Time) ([]AnalysisJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE source_ref = $1 AND status = $2 AND completed_at >= $3
ORDER BY completed_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, sourceRef, StatusCompleted, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Start moves a queued job to running.
func (r *PGRepo) Start(ctx context.Context, jobID string) error {
	if !validJobID(jobID) {
		return ErrNotFound
	}
	const query = `
UPDATE analysis_jobs
SET status = $1,
    updated_at = now()
WHERE id = $2::uuid AND status IN ($3, $1)`
	res, err := r.DB.ExecContext(ctx, query, StatusRunning, jobID, StatusQueued)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return ErrTerminal
	}
	return nil
}

// CommitStage appends a stage output inside a transaction. The row is
// locked so that the successor check and the append are atomic.
func (r *PGRepo) CommitStage(ctx context.Context, jobID string, output StageOutput) error {
	if !validJobID(jobID) {
		return ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE id = $1
FOR UPDATE`
	job, err := scanJob(tx.QueryRowContext(ctx, query, jobID))
	if err != nil {
		return err
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
	outputs, err := marshalJSONB(append(job.StageOutputs, output))
	if err != nil {
		return err
	}
	percentage := job.Progress.Percentage
	if pct := StageWeight(output.Stage); pct > percentage {
		percentage = pct
	}
	var validation any
	if output.Validation != nil {
		validation, err = marshalJSONB(output.Validation)
		if err != nil {
			return err
		}
	}

	const update = `
UPDATE analysis_jobs
SET status = $1,
    stage = $2,
    percentage = $3,
    stage_outputs = $4::jsonb,
    validation = COALESCE($5::jsonb, validation),
    updated_at = now()
WHERE id = $6::uuid`
	if _, err := tx.ExecContext(ctx, update, StatusRunning, output.Stage, percentage, outputs, validation, jobID); err != nil {
		return err
	}
	return tx.Commit()
}

// Complete marks the job completed. An already-terminal job is
// returned unchanged.
func (r *PGRepo) Complete(ctx context.Context, jobID string, result *Result) (AnalysisJob, error) {
	if !validJobID(jobID) {
		return AnalysisJob{}, ErrNotFound
	}
	payload, err := marshalJSONB(result)
	if err != nil {
		return AnalysisJob{}, err
	}
	var validation any
	if result != nil && result.Validation != nil {
		validation, err = marshalJSONB(result.Validation)
		if err != nil {
			return AnalysisJob{}, err
		}
	}

	const query = `
UPDATE analysis_jobs
SET status = $1,
    stage = $1,
    percentage = 100,
    result = $2::jsonb,
    validation = COALESCE($3::jsonb, validation),
    updated_at = now(),
    completed_at = now()
WHERE id = $4::uuid AND status NOT IN ($5, $6)`
	// Missing rows surface as ErrNotFound from the read; rows that were
	// already terminal come back unchanged.
	if _, err := r.DB.ExecContext(ctx, query, StatusCompleted, payload, validation, jobID, StatusCompleted, StatusFailed); err != nil {
		return AnalysisJob{}, err
	}
	return r.GetByID(ctx, jobID)
}

// Fail marks the job failed. An already-terminal job is returned
// unchanged.
func (r *PGRepo) Fail(ctx context.Context, jobID, message string) (AnalysisJob, error) {
	if !validJobID(jobID) {
		return AnalysisJob{}, ErrNotFound
	}
	const query = `
UPDATE analysis_jobs
SET status = $1,
    error_message = $2,
    updated_at = now(),
    completed_at = now()
WHERE id = $3::uuid AND status NOT IN ($4, $5)`
	if _, err := r.DB.ExecContext(ctx, query, StatusFailed, message, jobID, StatusCompleted, StatusFailed); err != nil {
		return AnalysisJob{}, err
	}
	return r.GetByID(ctx, jobID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectJobs(rows *sql.Rows) ([]AnalysisJob, error) {
	jobs := []AnalysisJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (AnalysisJob, error) {
	var job AnalysisJob
	var stageOutputs sql.NullString
	var result sql.NullString
	var validation sql.NullString
	var errorMessage sql.NullString
	var completedAt sql.NullTime
	var batchID sql.NullString
	err := row.Scan(
		&job.ID,
		&job.SourceRef,
		&job.Kind,
		&job.Status,
		&job.Progress.Stage,
		&job.Progress.Percentage,
		&stageOutputs,
		&result,
		&validation,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
		&batchID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnalysisJob{}, ErrNotFound
		}
		return AnalysisJob{}, err
	}
	if stageOutputs.Valid {
		if err := json.Unmarshal([]byte(stageOutputs.String), &job.StageOutputs); err != nil {
			job.StageOutputs = nil
		}
	}
	if result.Valid {
		job.Result = &Result{}
		if err := json.Unmarshal([]byte(result.String), job.Result); err != nil {
			job.Result = nil
		}
	}
	if validation.Valid {
		if err := json.Unmarshal([]byte(validation.String), &job.Validation); err != nil {
			job.Validation = nil
		}
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if batchID.Valid {
		job.BatchID = batchID.String
	}
	return job, nil
}

func marshalJSONB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
