// Package notify records and serves analysis event notifications:
// completed runs, failed runs and low-score alerts.
package notify

import (
	"errors"
	"time"
)

const (
	TypeAnalysisCompleted = "analysis_completed"
	TypeAnalysisFailed    = "analysis_failed"
	TypeThresholdAlert    = "threshold_alert"
)

var ErrNotFound = errors.New("not found")

// Notification is one recorded event. Notifications are append-only;
// only the read flag changes after creation.
type Notification struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	AnalysisID string    `json:"analysisId,omitempty"`
	SourceRef  string    `json:"sourceRef,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}
