package feedback

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const reportColumns = `id, analysis_id, field_name, issue_type, severity, crawler_value, report_value, description, status, created_at, updated_at`

// validReportID rejects ids that cannot be cast to uuid before they
// reach a query. Without the check a malformed id surfaces as a
// Postgres cast error instead of the not-found the memory repo gives.
func validReportID(id string) bool {
	return uuid.Validate(id) == nil
}

// Create inserts a new error report.
func (r *PGRepo) Create(ctx context.Context, report ErrorReport) error {
	const query = `
INSERT INTO error_reports (
	id, analysis_id, field_name, issue_type, severity, crawler_value, report_value, description, status, created_at, updated_at
)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		report.ID,
		report.AnalysisID,
		report.FieldName,
		report.IssueType,
		report.Severity,
		report.CrawlerValue,
		report.ReportValue,
		report.Description,
		report.Status,
		report.CreatedAt,
		report.UpdatedAt,
	)
	return err
}

// GetByID returns a report by ID.
func (r *PGRepo) GetByID(ctx context.Context, reportID string) (ErrorReport, error) {
	if !validReportID(reportID) {
		return ErrorReport{}, ErrNotFound
	}
	query := `
SELECT ` + reportColumns + `
FROM error_reports
WHERE id = $1
LIMIT 1`
	return scanReport(r.DB.QueryRowContext(ctx, query, reportID))
}

// Query lists reports newest-first with optional field/status filters.
func (r *PGRepo) Query(ctx context.Context, q Query) ([]ErrorReport, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	query := `
SELECT ` + reportColumns + `
FROM error_reports
WHERE ($1 = '' OR field_name = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, q.FieldName, q.Status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []ErrorReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// UpdateStatus sets a report's review status.
func (r *PGRepo) UpdateStatus(ctx context.Context, reportID, status string) (ErrorReport, error) {
	if !validReportID(reportID) {
		return ErrorReport{}, ErrNotFound
	}
	const query = `
UPDATE error_reports
SET status = $1,
    updated_at = now()
WHERE id = $2::uuid`
	res, err := r.DB.ExecContext(ctx, query, status, reportID)
	if err != nil {
		return ErrorReport{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrorReport{}, ErrNotFound
	}
	return r.GetByID(ctx, reportID)
}

// PriorityStats groups reports by field name, count descending with a
// most-recent tie-break.
func (r *PGRepo) PriorityStats(ctx context.Context, topK int) ([]PriorityStat, error) {
	if topK <= 0 {
		topK = 10
	}
	const query = `
SELECT field_name, COUNT(*) AS report_count, MAX(created_at) AS last_reported_at
FROM error_reports
GROUP BY field_name
ORDER BY report_count DESC, last_reported_at DESC, field_name ASC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []PriorityStat{}
	for rows.Next() {
		var stat PriorityStat
		if err := rows.Scan(&stat.FieldName, &stat.ReportCount, &stat.LastReportedAt); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

func scanReport(row interface{ Scan(dest ...any) error }) (ErrorReport, error) {
	var report ErrorReport
	var analysisID sql.NullString
	var crawlerValue sql.NullString
	var reportValue sql.NullString
	var description sql.NullString
	err := row.Scan(
		&report.ID,
		&analysisID,
		&report.FieldName,
		&report.IssueType,
		&report.Severity,
		&crawlerValue,
		&reportValue,
		&description,
		&report.Status,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrorReport{}, ErrNotFound
		}
		return ErrorReport{}, err
	}
	if analysisID.Valid {
		report.AnalysisID = analysisID.String
	}
	if crawlerValue.Valid {
		report.CrawlerValue = crawlerValue.String
	}
	if reportValue.Valid {
		report.ReportValue = reportValue.String
	}
	if description.Valid {
		report.Description = description.String
	}
	return report, nil
}
