package jobs

import (
	"context"
	"testing"
	"time"

	"shoplens-backend/internal/analyze"
	"shoplens-backend/internal/harvest"
)

func newTestJob(kind string) AnalysisJob {
	now := time.Now().UTC()
	return AnalysisJob{
		ID:        "job-" + kind,
		SourceRef: "https://example.com/goods/123",
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCommitStageAdvancesProgress(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job := newTestJob(KindProduct)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Start(ctx, job.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageCrawling, Crawl: &harvest.Result{}}); err != nil {
		t.Fatalf("CommitStage crawling: %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Progress.Stage != StageCrawling {
		t.Fatalf("expected stage crawling, got %q", got.Progress.Stage)
	}
	if got.Progress.Percentage != 30 {
		t.Fatalf("expected percentage 30, got %d", got.Progress.Percentage)
	}
	if len(got.StageOutputs) != 1 {
		t.Fatalf("expected 1 stage output, got %d", len(got.StageOutputs))
	}
}

func TestCommitStageRejectsNonSuccessor(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job := newTestJob(KindProduct)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// analyzing before crawling is out of order
	err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageAnalyzing})
	if err != ErrStaleStage {
		t.Fatalf("expected ErrStaleStage, got %v", err)
	}

	got, _ := repo.GetByID(ctx, job.ID)
	if len(got.StageOutputs) != 0 {
		t.Fatalf("rejected commit must not mutate the job")
	}
	if got.Progress.Percentage != 0 {
		t.Fatalf("rejected commit must not advance progress")
	}

	// committing the same stage twice is also stale
	if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageCrawling}); err != nil {
		t.Fatalf("CommitStage crawling: %v", err)
	}
	if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageCrawling}); err != ErrStaleStage {
		t.Fatalf("expected ErrStaleStage on replay, got %v", err)
	}
}

func TestShopSequenceSkipsValidating(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job := newTestJob(KindShop)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, stage := range []string{StageCrawling, StageAnalyzing, StageChecklist} {
		if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: stage}); err != nil {
			t.Fatalf("CommitStage %s: %v", stage, err)
		}
	}
	if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageValidating}); err != ErrStaleStage {
		t.Fatalf("expected ErrStaleStage for validating on shop job, got %v", err)
	}
}

func TestCompleteIsTerminalAndIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job := newTestJob(KindProduct)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.Complete(ctx, job.ID, &Result{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if first.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", first.Status)
	}
	if first.Progress.Percentage != 100 {
		t.Fatalf("expected 100%%, got %d", first.Progress.Percentage)
	}
	if first.CompletedAt == nil {
		t.Fatalf("expected completedAt set")
	}

	// a late failure must not overwrite the completed state
	second, err := repo.Fail(ctx, job.ID, "late failure")
	if err != nil {
		t.Fatalf("Fail on terminal: %v", err)
	}
	if second.Status != StatusCompleted {
		t.Fatalf("terminal status must stick, got %q", second.Status)
	}
	if second.ErrorMessage != nil {
		t.Fatalf("terminal job must not gain an error message")
	}

	// stage commits are rejected after completion
	if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageCrawling}); err != ErrTerminal {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestFailIsTerminalAndIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job := newTestJob(KindProduct)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	failed, err := repo.Fail(ctx, job.ID, "crawling: connection refused")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", failed.Status)
	}
	if failed.ErrorMessage == nil || *failed.ErrorMessage != "crawling: connection refused" {
		t.Fatalf("unexpected error message: %v", failed.ErrorMessage)
	}

	again, err := repo.Complete(ctx, job.ID, &Result{})
	if err != nil {
		t.Fatalf("Complete on terminal: %v", err)
	}
	if again.Status != StatusFailed {
		t.Fatalf("terminal status must stick, got %q", again.Status)
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		job := newTestJob(KindProduct)
		job.ID = string(rune('a' + i))
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	jobs, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Fatalf("expected newest first, got %s then %s", jobs[0].ID, jobs[1].ID)
	}

	rest, err := repo.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List offset: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "a" {
		t.Fatalf("unexpected offset page: %+v", rest)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.GetByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommittedOutputsAreIsolatedFromCallers(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	job := newTestJob(KindProduct)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageCrawling, Crawl: &harvest.Result{}}); err != nil {
		t.Fatalf("CommitStage crawling: %v", err)
	}

	analysis := &analyze.Result{Price: &analyze.PriceAnalysis{SalePrice: "4500"}}
	if err := repo.CommitStage(ctx, job.ID, StageOutput{Stage: StageAnalyzing, Analysis: analysis}); err != nil {
		t.Fatalf("CommitStage analyzing: %v", err)
	}

	snapshot, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	// The validating stage corrects the same result object the
	// analyzing stage committed. Neither the stored record nor an
	// earlier read may change under it.
	analysis.Price.SalePrice = "4562"

	out, ok := snapshot.Output(StageAnalyzing)
	if !ok {
		t.Fatalf("expected committed analyzing output")
	}
	if got := out.Analysis.Price.SalePrice; got != "4500" {
		t.Fatalf("snapshot mutated after commit: got %q, want 4500", got)
	}

	fresh, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	out, ok = fresh.Output(StageAnalyzing)
	if !ok {
		t.Fatalf("expected committed analyzing output")
	}
	if got := out.Analysis.Price.SalePrice; got != "4500" {
		t.Fatalf("stored output mutated after commit: got %q, want 4500", got)
	}
}

func TestListByBatchInSubmissionOrder(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		job := newTestJob(KindProduct)
		job.ID = string(rune('a' + i))
		job.BatchID = "batch-1"
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	other := newTestJob(KindProduct)
	other.ID = "z"
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ListByBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("ListByBatch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(got))
	}
	if got[0].ID != "a" || got[2].ID != "c" {
		t.Fatalf("expected submission order, got %s then %s", got[0].ID, got[2].ID)
	}

	none, err := repo.ListByBatch(ctx, "batch-404")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty result for unknown batch, got %v %v", none, err)
	}
}

func TestListCompletedBySourceFiltersAndOrders(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	sourceRef := "https://example.com/goods/123"
	base := time.Now().UTC()

	mk := func(id string, completedAgo time.Duration, score int) {
		job := newTestJob(KindProduct)
		job.ID = id
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := repo.Complete(ctx, id, &Result{Analysis: &analyze.Result{OverallScore: score}}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		// Backdate through a direct store write for deterministic ordering.
		repo.mu.Lock()
		j := repo.byID[id]
		at := base.Add(-completedAgo)
		j.CompletedAt = &at
		repo.byID[id] = j
		repo.mu.Unlock()
	}
	mk("old", 48*time.Hour, 60)
	mk("mid", 20*time.Hour, 70)
	mk("new", 1*time.Hour, 80)

	failed := newTestJob(KindProduct)
	failed.ID = "failed"
	if err := repo.Create(ctx, failed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Fail(ctx, "failed", "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, err := repo.ListCompletedBySource(ctx, sourceRef, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListCompletedBySource: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 jobs inside the window, got %d", len(got))
	}
	if got[0].ID != "mid" || got[1].ID != "new" {
		t.Fatalf("expected oldest first, got %s then %s", got[0].ID, got[1].ID)
	}
}
