package feedback

import (
	"errors"
	"time"
)

// Issue types a crawler field mismatch can be reported under.
const (
	IssueMismatch        = "mismatch"
	IssueMissing         = "missing"
	IssueIncorrectFormat = "incorrect-format"
	IssueOther           = "other"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusResolved = "resolved"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid error report")
)

// ErrorReport is one submitted extraction problem. Reports are
// append-only; only status changes after submission.
type ErrorReport struct {
	ID           string    `json:"id"`
	AnalysisID   string    `json:"analysisId,omitempty"`
	FieldName    string    `json:"fieldName"`
	IssueType    string    `json:"issueType"`
	Severity     string    `json:"severity"`
	CrawlerValue string    `json:"crawlerValue,omitempty"`
	ReportValue  string    `json:"reportValue,omitempty"`
	Description  string    `json:"description,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PriorityStat is one entry of the crawl-priority ranking.
type PriorityStat struct {
	FieldName      string    `json:"fieldName"`
	ReportCount    int       `json:"reportCount"`
	LastReportedAt time.Time `json:"lastReportedAt"`
}

// Query filters error-report listings. Zero values mean "any".
type Query struct {
	FieldName string
	Status    string
	Limit     int
}

func validIssueType(v string) bool {
	switch v {
	case IssueMismatch, IssueMissing, IssueIncorrectFormat, IssueOther:
		return true
	}
	return false
}

func validSeverity(v string) bool {
	switch v {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

func validStatus(v string) bool {
	switch v {
	case StatusPending, StatusReviewed, StatusResolved:
		return true
	}
	return false
}
