package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shoplens-backend/internal/shared/telemetry"
)

// Service records pipeline events as notifications and serves the
// notification feed. The event methods are best-effort: a persistence
// failure is logged and swallowed so the pipeline never fails because
// a notification could not be written.
type Service struct {
	Repo Repo

	// ScoreAlertThreshold adds a threshold alert for completed analyses
	// scoring below it. Zero disables alerts.
	ScoreAlertThreshold int
}

// AnalysisCompleted records a completion notification, plus a
// threshold alert when the score falls below the configured bar.
func (s *Service) AnalysisCompleted(ctx context.Context, jobID, sourceRef string, score int, grade string) {
	s.record(ctx, Notification{
		Type:       TypeAnalysisCompleted,
		Title:      "Analysis completed",
		Message:    fmt.Sprintf("Analysis scored %d/100 (grade %s)", score, grade),
		AnalysisID: jobID,
		SourceRef:  sourceRef,
	})
	if s.ScoreAlertThreshold > 0 && score < s.ScoreAlertThreshold {
		s.record(ctx, Notification{
			Type:       TypeThresholdAlert,
			Title:      "Low score alert",
			Message:    fmt.Sprintf("Score %d fell below the alert threshold of %d", score, s.ScoreAlertThreshold),
			AnalysisID: jobID,
			SourceRef:  sourceRef,
		})
	}
}

// AnalysisFailed records a failure notification.
func (s *Service) AnalysisFailed(ctx context.Context, jobID, sourceRef, message string) {
	s.record(ctx, Notification{
		Type:       TypeAnalysisFailed,
		Title:      "Analysis failed",
		Message:    message,
		AnalysisID: jobID,
		SourceRef:  sourceRef,
	})
}

func (s *Service) record(ctx context.Context, n Notification) {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	if err := s.Repo.Create(ctx, n); err != nil {
		telemetry.Error("notification not recorded", map[string]any{"type": n.Type, "error": err.Error()})
	}
}

// List returns the feed plus the current unread count.
func (s *Service) List(ctx context.Context, unreadOnly bool, limit int) ([]Notification, int, error) {
	items, err := s.Repo.List(ctx, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.Repo.UnreadCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

// UnreadCount counts unread notifications.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	return s.Repo.UnreadCount(ctx)
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) (Notification, error) {
	return s.Repo.MarkRead(ctx, id)
}

// MarkAllRead flags every unread notification as read.
func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	return s.Repo.MarkAllRead(ctx)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}
