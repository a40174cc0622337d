package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func pgTestJob() AnalysisJob {
	now := time.Now().UTC()
	return AnalysisJob{
		ID:        "3d6f0e1a-0000-0000-0000-000000000001",
		SourceRef: "https://example.com/goods/123",
		Kind:      KindProduct,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func jobColumnNames() []string {
	return []string{
		"id", "source_ref", "kind", "status", "stage", "percentage",
		"stage_outputs", "result", "validation", "error_message",
		"created_at", "updated_at", "completed_at", "batch_id",
	}
}

func jobRows(job AnalysisJob) *sqlmock.Rows {
	return sqlmock.NewRows(jobColumnNames()).AddRow(
		job.ID, job.SourceRef, job.Kind, job.Status,
		job.Progress.Stage, job.Progress.Percentage,
		nil, nil, nil, nil,
		job.CreatedAt, job.UpdatedAt, nil, nil,
	)
}

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	job := pgTestJob()

	mock.ExpectExec("INSERT INTO analysis_jobs").
		WithArgs(
			job.ID,
			job.SourceRef,
			job.Kind,
			job.Status,
			"",
			0,
			sqlmock.AnyArg(), // stage_outputs
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			"", // batch_id, NULLIF'd away
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	absent := "3d6f0e1a-0000-0000-0000-00000000ffff"
	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WithArgs(absent).
		WillReturnRows(sqlmock.NewRows(jobColumnNames()))

	if _, err := repo.GetByID(context.Background(), absent); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMalformedIDNeverHitsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// A non-uuid id must read as not-found, not as a Postgres cast
	// error; no query expectations are registered on purpose.
	repo := &PGRepo{DB: db}
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "not-a-uuid"); err != ErrNotFound {
		t.Fatalf("GetByID: expected ErrNotFound, got %v", err)
	}
	if err := repo.Start(ctx, "not-a-uuid"); err != ErrNotFound {
		t.Fatalf("Start: expected ErrNotFound, got %v", err)
	}
	if err := repo.CommitStage(ctx, "not-a-uuid", StageOutput{Stage: StageCrawling}); err != ErrNotFound {
		t.Fatalf("CommitStage: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Complete(ctx, "not-a-uuid", &Result{}); err != ErrNotFound {
		t.Fatalf("Complete: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Fail(ctx, "not-a-uuid", "boom"); err != ErrNotFound {
		t.Fatalf("Fail: expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCommitStageRejectsStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	job := pgTestJob()
	job.Status = StatusRunning
	job.Progress = Progress{Stage: StageCrawling, Percentage: 30}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WithArgs(job.ID).
		WillReturnRows(jobRows(job))
	mock.ExpectRollback()

	// checklist is not the successor of crawling
	err = repo.CommitStage(context.Background(), job.ID, StageOutput{Stage: StageChecklist})
	if err != ErrStaleStage {
		t.Fatalf("expected ErrStaleStage, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCommitStageCommitsSuccessor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	job := pgTestJob()
	job.Status = StatusRunning
	job.Progress = Progress{Stage: StageCrawling, Percentage: 30}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WithArgs(job.ID).
		WillReturnRows(jobRows(job))
	mock.ExpectExec("UPDATE analysis_jobs").
		WithArgs(StatusRunning, StageAnalyzing, 55, sqlmock.AnyArg(), nil, job.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CommitStage(context.Background(), job.ID, StageOutput{Stage: StageAnalyzing}); err != nil {
		t.Fatalf("CommitStage: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFailSkipsTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	job := pgTestJob()
	job.Status = StatusCompleted

	mock.ExpectExec("UPDATE analysis_jobs").
		WithArgs(StatusFailed, "boom", job.ID, StatusCompleted, StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WithArgs(job.ID).
		WillReturnRows(jobRows(job))

	got, err := repo.Fail(context.Background(), job.ID, "boom")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("terminal job must come back unchanged, got %q", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListByBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	batchID := "3d6f0e1a-0000-0000-0000-0000000000aa"
	job := pgTestJob()
	job.BatchID = batchID

	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WithArgs(batchID).
		WillReturnRows(sqlmock.NewRows(jobColumnNames()).AddRow(
			job.ID, job.SourceRef, job.Kind, job.Status,
			job.Progress.Stage, job.Progress.Percentage,
			nil, nil, nil, nil,
			job.CreatedAt, job.UpdatedAt, nil, batchID,
		))

	got, err := repo.ListByBatch(context.Background(), batchID)
	if err != nil {
		t.Fatalf("ListByBatch: %v", err)
	}
	if len(got) != 1 || got[0].BatchID != batchID {
		t.Fatalf("unexpected batch result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}

	// a malformed batch id is empty, never a query
	empty, err := repo.ListByBatch(context.Background(), "not-a-uuid")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result for malformed batch id, got %v %v", empty, err)
	}
}
