package feedback

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores error reports in memory.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]ErrorReport
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]ErrorReport)}
}

// Create stores the report.
func (r *MemoryRepo) Create(ctx context.Context, report ErrorReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[report.ID] = report
	return nil
}

// GetByID returns a report by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, reportID string) (ErrorReport, error) {
	if err := ctx.Err(); err != nil {
		return ErrorReport{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.byID[reportID]
	if !ok {
		return ErrorReport{}, ErrNotFound
	}
	return report, nil
}

// Query lists reports newest-first with optional field/status filters.
func (r *MemoryRepo) Query(ctx context.Context, q Query) ([]ErrorReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	reports := make([]ErrorReport, 0, len(r.byID))
	for _, report := range r.byID {
		if q.FieldName != "" && report.FieldName != q.FieldName {
			continue
		}
		if q.Status != "" && report.Status != q.Status {
			continue
		}
		reports = append(reports, report)
	}
	r.mu.RUnlock()

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	if q.Limit > 0 && len(reports) > q.Limit {
		reports = reports[:q.Limit]
	}
	return reports, nil
}

// UpdateStatus sets a report's review status.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, reportID, status string) (ErrorReport, error) {
	if err := ctx.Err(); err != nil {
		return ErrorReport{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.byID[reportID]
	if !ok {
		return ErrorReport{}, ErrNotFound
	}
	report.Status = status
	report.UpdatedAt = time.Now().UTC()
	r.byID[reportID] = report
	return report, nil
}

// PriorityStats groups reports by field name, ordered by report count
// descending, breaking ties by the most recent report.
func (r *MemoryRepo) PriorityStats(ctx context.Context, topK int) ([]PriorityStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	byField := make(map[string]*PriorityStat)
	for _, report := range r.byID {
		stat, ok := byField[report.FieldName]
		if !ok {
			stat = &PriorityStat{FieldName: report.FieldName}
			byField[report.FieldName] = stat
		}
		stat.ReportCount++
		if report.CreatedAt.After(stat.LastReportedAt) {
			stat.LastReportedAt = report.CreatedAt
		}
	}
	r.mu.RUnlock()

	stats := make([]PriorityStat, 0, len(byField))
	for _, stat := range byField {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ReportCount != stats[j].ReportCount {
			return stats[i].ReportCount > stats[j].ReportCount
		}
		if !stats[i].LastReportedAt.Equal(stats[j].LastReportedAt) {
			return stats[i].LastReportedAt.After(stats[j].LastReportedAt)
		}
		return stats[i].FieldName < stats[j].FieldName
	})
	if topK > 0 && len(stats) > topK {
		stats = stats[:topK]
	}
	return stats, nil
}
