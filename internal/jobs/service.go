package jobs

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dispatcher hands a created job to the background pipeline.
type Dispatcher interface {
	Dispatch(job AnalysisJob)
}

// Service coordinates job submission and retrieval.
type Service struct {
	Repo       Repo
	Dispatcher Dispatcher
}

// Submit validates the source URL, creates a queued job and dispatches
// it. Resubmitting the same URL always creates a fresh job.
func (s *Service) Submit(ctx context.Context, sourceRef string) (AnalysisJob, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	kind, err := classifySource(sourceRef)
	if err != nil {
		return AnalysisJob{}, err
	}

	now := time.Now().UTC()
	job := AnalysisJob{
		ID:        uuid.NewString(),
		SourceRef: sourceRef,
		Kind:      kind,
		Status:    StatusQueued,
		Progress:  Progress{Stage: "", Percentage: 0},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return AnalysisJob{}, err
	}
	if s.Dispatcher != nil {
		s.Dispatcher.Dispatch(job)
	}
	return job, nil
}

// maxBatchSize caps how many URLs one batch submission may carry.
const maxBatchSize = 20

// BatchRejection records one submitted URL that failed validation.
type BatchRejection struct {
	SourceRef string `json:"sourceRef"`
	Reason    string `json:"reason"`
}

// BatchSubmission is the outcome of a batch submit: the accepted jobs
// plus any per-URL rejections.
type BatchSubmission struct {
	BatchID  string
	Jobs     []AnalysisJob
	Rejected []BatchRejection
}

// BatchStatus aggregates the state of all jobs in one batch.
type BatchStatus struct {
	BatchID   string
	Status    string
	Total     int
	Completed int
	Failed    int
	Pending   int
	Jobs      []AnalysisJob
}

// SubmitBatch creates one queued job per valid URL under a shared
// batch id and dispatches them. Invalid URLs are reported back rather
// than failing the whole batch; a batch with no valid URL is rejected.
func (s *Service) SubmitBatch(ctx context.Context, sourceRefs []string) (BatchSubmission, error) {
	if len(sourceRefs) == 0 || len(sourceRefs) > maxBatchSize {
		return BatchSubmission{}, ErrBadBatch
	}

	sub := BatchSubmission{
		BatchID:  uuid.NewString(),
		Rejected: []BatchRejection{},
	}
	now := time.Now().UTC()
	for _, ref := range sourceRefs {
		ref = strings.TrimSpace(ref)
		kind, err := classifySource(ref)
		if err != nil {
			sub.Rejected = append(sub.Rejected, BatchRejection{SourceRef: ref, Reason: "invalid_url"})
			continue
		}
		job := AnalysisJob{
			ID:        uuid.NewString(),
			BatchID:   sub.BatchID,
			SourceRef: ref,
			Kind:      kind,
			Status:    StatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.Repo.Create(ctx, job); err != nil {
			return BatchSubmission{}, err
		}
		sub.Jobs = append(sub.Jobs, job)
	}
	if len(sub.Jobs) == 0 {
		return BatchSubmission{}, ErrBadSource
	}

	if s.Dispatcher != nil {
		for _, job := range sub.Jobs {
			s.Dispatcher.Dispatch(job)
		}
	}
	return sub, nil
}

// BatchStatus returns the aggregate state of a batch. A batch id with
// no jobs behind it reports ErrNotFound.
func (s *Service) BatchStatus(ctx context.Context, batchID string) (BatchStatus, error) {
	jobList, err := s.Repo.ListByBatch(ctx, batchID)
	if err != nil {
		return BatchStatus{}, err
	}
	if len(jobList) == 0 {
		return BatchStatus{}, ErrNotFound
	}

	status := BatchStatus{BatchID: batchID, Total: len(jobList), Jobs: jobList}
	for _, job := range jobList {
		switch job.Status {
		case StatusCompleted:
			status.Completed++
		case StatusFailed:
			status.Failed++
		default:
			status.Pending++
		}
	}
	status.Status = "processing"
	if status.Pending == 0 {
		status.Status = "completed"
	}
	return status, nil
}

// TrendPoint is one day of score history for a source URL.
type TrendPoint struct {
	Date     string  `json:"date"`
	AvgScore float64 `json:"avgScore"`
	MaxScore int     `json:"maxScore"`
	MinScore int     `json:"minScore"`
	Count    int     `json:"count"`
}

// ScoreTrend aggregates the overall scores of completed analyses for
// one source URL into daily points over the past days window. Days at
// or below zero fall back to 30.
func (s *Service) ScoreTrend(ctx context.Context, sourceRef string, days int) ([]TrendPoint, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return nil, ErrBadSource
	}
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	jobList, err := s.Repo.ListCompletedBySource(ctx, sourceRef, since)
	if err != nil {
		return nil, err
	}

	points := []TrendPoint{}
	byDate := map[string]int{}
	sums := []int{}
	for _, job := range jobList {
		if job.Result == nil || job.Result.Analysis == nil || job.CompletedAt == nil {
			continue
		}
		score := job.Result.Analysis.OverallScore
		date := job.CompletedAt.UTC().Format("2006-01-02")
		idx, ok := byDate[date]
		if !ok {
			byDate[date] = len(points)
			points = append(points, TrendPoint{Date: date, MaxScore: score, MinScore: score, Count: 1})
			sums = append(sums, score)
			continue
		}
		p := &points[idx]
		p.Count++
		sums[idx] += score
		if score > p.MaxScore {
			p.MaxScore = score
		}
		if score < p.MinScore {
			p.MinScore = score
		}
	}
	for i := range points {
		points[i].AvgScore = float64(sums[i]) / float64(points[i].Count)
	}
	return points, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (AnalysisJob, error) {
	return s.Repo.GetByID(ctx, jobID)
}

// List returns jobs newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]AnalysisJob, error) {
	return s.Repo.List(ctx, limit, offset)
}

// classifySource validates the URL and decides the job kind. Shop
// pages carry a /shop/ path segment; everything else is a product.
func classifySource(sourceRef string) (string, error) {
	if sourceRef == "" {
		return "", ErrBadSource
	}
	u, err := url.Parse(sourceRef)
	if err != nil {
		return "", ErrBadSource
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrBadSource
	}
	if strings.Contains(strings.ToLower(u.Path), "/shop/") || strings.HasSuffix(strings.ToLower(u.Path), "/shop") {
		return KindShop, nil
	}
	return KindProduct, nil
}
