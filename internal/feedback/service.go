package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service coordinates error-report submission and the crawl-priority
// ranking derived from it.
type Service struct {
	Repo Repo
}

// SubmitInput carries a new error report. Severity defaults to medium
// when empty.
type SubmitInput struct {
	AnalysisID   string
	FieldName    string
	IssueType    string
	Severity     string
	CrawlerValue string
	ReportValue  string
	Description  string
}

// Submit validates and stores a new report. Status always starts
// pending.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (ErrorReport, error) {
	in.FieldName = strings.TrimSpace(in.FieldName)
	if in.FieldName == "" {
		return ErrorReport{}, fmt.Errorf("%w: fieldName is required", ErrValidation)
	}
	if !validIssueType(in.IssueType) {
		return ErrorReport{}, fmt.Errorf("%w: unknown issueType %q", ErrValidation, in.IssueType)
	}
	if in.Severity == "" {
		in.Severity = SeverityMedium
	}
	if !validSeverity(in.Severity) {
		return ErrorReport{}, fmt.Errorf("%w: unknown severity %q", ErrValidation, in.Severity)
	}
	in.AnalysisID = strings.TrimSpace(in.AnalysisID)
	if in.AnalysisID != "" && uuid.Validate(in.AnalysisID) != nil {
		return ErrorReport{}, fmt.Errorf("%w: analysisId must be a UUID", ErrValidation)
	}

	now := time.Now().UTC()
	report := ErrorReport{
		ID:           uuid.NewString(),
		AnalysisID:   in.AnalysisID,
		FieldName:    in.FieldName,
		IssueType:    in.IssueType,
		Severity:     in.Severity,
		CrawlerValue: in.CrawlerValue,
		ReportValue:  in.ReportValue,
		Description:  in.Description,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, report); err != nil {
		return ErrorReport{}, err
	}
	return report, nil
}

// List returns reports matching the query, newest first.
func (s *Service) List(ctx context.Context, q Query) ([]ErrorReport, error) {
	return s.Repo.Query(ctx, q)
}

// UpdateStatus moves a report through the review workflow.
func (s *Service) UpdateStatus(ctx context.Context, reportID, status string) (ErrorReport, error) {
	if !validStatus(status) {
		return ErrorReport{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.Repo.UpdateStatus(ctx, reportID, status)
}

// PriorityStats returns the ranked field stats.
func (s *Service) PriorityStats(ctx context.Context, topK int) ([]PriorityStat, error) {
	return s.Repo.PriorityStats(ctx, topK)
}

// PriorityFields returns just the ranked field names. This is the
// harvester's hint source: fields reported most often get a second
// extraction pass on future crawls.
func (s *Service) PriorityFields(ctx context.Context, topK int) ([]string, error) {
	stats, err := s.Repo.PriorityStats(ctx, topK)
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(stats))
	for _, stat := range stats {
		fields = append(fields, stat.FieldName)
	}
	return fields, nil
}
