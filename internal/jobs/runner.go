package jobs

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"shoplens-backend/internal/analyze"
	"shoplens-backend/internal/checklist"
	"shoplens-backend/internal/harvest"
	"shoplens-backend/internal/reconcile"
	"shoplens-backend/internal/shared/metrics"
	"shoplens-backend/internal/shared/telemetry"
)

// Harvester fetches a source page and extracts structured fields.
type Harvester interface {
	Harvest(ctx context.Context, sourceRef, kind string) (*harvest.Result, error)
}

// Analyzer scores harvested fields into an analysis result.
type Analyzer interface {
	Analyze(ctx context.Context, harvested *harvest.Result) (*analyze.Result, error)
}

// ChecklistEvaluator evaluates the sales checklist against harvested fields.
type ChecklistEvaluator interface {
	Evaluate(ctx context.Context, harvested *harvest.Result) (*checklist.Result, error)
}

// Validator reconciles the analysis against harvested ground truth.
type Validator interface {
	Validate(fields map[string]string, result *analyze.Result, checks *checklist.Result) *reconcile.Report
}

// Notifier receives job lifecycle events. Calls are best-effort; the
// pipeline never fails because a notification could not be recorded.
type Notifier interface {
	AnalysisCompleted(ctx context.Context, jobID, sourceRef string, score int, grade string)
	AnalysisFailed(ctx context.Context, jobID, sourceRef, message string)
}

// Runner drives queued jobs through the stage pipeline on a bounded
// pool of background workers.
type Runner struct {
	Repo      Repo
	Harvester Harvester
	Analyzer  Analyzer
	Checklist ChecklistEvaluator
	Validator Validator
	Monitor   Monitor

	// Notifier, when set, is told about completed and failed jobs.
	Notifier Notifier

	// JobTimeout bounds one job end to end. Zero means no limit.
	JobTimeout time.Duration

	sem *semaphore.Weighted
}

// NewRunner constructs a Runner with poolSize concurrent workers.
func NewRunner(repo Repo, h Harvester, a Analyzer, c ChecklistEvaluator, v Validator, m Monitor, poolSize int, jobTimeout time.Duration) *Runner {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Runner{
		Repo:       repo,
		Harvester:  h,
		Analyzer:   a,
		Checklist:  c,
		Validator:  v,
		Monitor:    m,
		JobTimeout: jobTimeout,
		sem:        semaphore.NewWeighted(int64(poolSize)),
	}
}

// Dispatch schedules a job on the worker pool and returns immediately.
// The job runs once; failures are recorded, never retried.
func (r *Runner) Dispatch(job AnalysisJob) {
	go func() {
		if err := r.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer r.sem.Release(1)

		ctx := context.Background()
		cancel := func() {}
		if r.JobTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, r.JobTimeout)
		}
		defer cancel()

		r.run(ctx, job)
	}()
}

func (r *Runner) run(ctx context.Context, job AnalysisJob) {
	start := time.Now()
	if err := r.Repo.Start(ctx, job.ID); err != nil {
		telemetry.Error("job start failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}
	metrics.IncJobStarted()
	telemetry.Info("job started", map[string]any{"job_id": job.ID, "kind": job.Kind, "source": job.SourceRef})

	var (
		harvested *harvest.Result
		analysis  *analyze.Result
		checks    *checklist.Result
		report    *reconcile.Report
	)

	for _, stage := range StageSequence(job.Kind) {
		if err := ctx.Err(); err != nil {
			r.fail(ctx, job, start, stage, fmt.Errorf("pipeline aborted before %s: %w", stage, err))
			return
		}

		stageStart := time.Now()
		output := StageOutput{Stage: stage, CommittedAt: time.Now().UTC()}
		var err error
		switch stage {
		case StageCrawling:
			harvested, err = r.Harvester.Harvest(ctx, job.SourceRef, job.Kind)
			output.Crawl = harvested
		case StageAnalyzing:
			analysis, err = r.Analyzer.Analyze(ctx, harvested)
			output.Analysis = analysis
		case StageChecklist:
			checks, err = r.Checklist.Evaluate(ctx, harvested)
			output.Checklist = checks
		case StageValidating:
			report = r.Validator.Validate(harvested.FieldMap(), analysis, checks)
			output.Validation = report
		default:
			err = fmt.Errorf("unknown stage %q", stage)
		}
		r.recordStage(stage, err == nil, time.Since(stageStart))
		if err != nil {
			r.fail(ctx, job, start, stage, fmt.Errorf("%s: %w", stage, err))
			return
		}

		if err := r.Repo.CommitStage(ctx, job.ID, output); err != nil {
			r.fail(ctx, job, start, stage, fmt.Errorf("commit %s: %w", stage, err))
			return
		}
		telemetry.Info("stage committed", map[string]any{"job_id": job.ID, "stage": stage, "duration_ms": time.Since(stageStart).Milliseconds()})
	}

	result := &Result{
		Harvested:  harvested,
		Analysis:   analysis,
		Checklist:  checks,
		Validation: report,
	}
	if _, err := r.Repo.Complete(ctx, job.ID, result); err != nil {
		telemetry.Error("job completion failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return
	}
	metrics.IncJobCompleted()
	metrics.ObserveJobDurationMs(float64(time.Since(start)) / float64(time.Millisecond))
	telemetry.Info("job completed", map[string]any{"job_id": job.ID, "kind": job.Kind, "duration_ms": time.Since(start).Milliseconds()})

	if r.Notifier != nil && analysis != nil {
		r.Notifier.AnalysisCompleted(ctx, job.ID, job.SourceRef, analysis.OverallScore, analysis.Grade)
	}
}

func (r *Runner) fail(ctx context.Context, job AnalysisJob, start time.Time, stage string, cause error) {
	// Persist the failure even if the job's own context expired.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if _, err := r.Repo.Fail(ctx, job.ID, sanitizeError(cause)); err != nil {
		telemetry.Error("job failure not persisted", map[string]any{"job_id": job.ID, "error": err.Error()})
	}
	metrics.IncJobFailed()
	metrics.ObserveJobDurationMs(float64(time.Since(start)) / float64(time.Millisecond))
	telemetry.Error("job failed", map[string]any{"job_id": job.ID, "stage": stage, "error": cause.Error()})

	if r.Notifier != nil {
		r.Notifier.AnalysisFailed(ctx, job.ID, job.SourceRef, sanitizeError(cause))
	}
}

func (r *Runner) recordStage(stage string, success bool, duration time.Duration) {
	metrics.ObserveStageDurationMs(stage, float64(duration)/float64(time.Millisecond))
	if r.Monitor != nil {
		r.Monitor.RecordStage(stage, success, duration)
	}
}
