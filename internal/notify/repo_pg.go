package notify

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

const notificationColumns = `id, type, title, message, analysis_id, source_ref, is_read, created_at`

// validNotificationID rejects ids that cannot be cast to uuid so a
// malformed id reads as not-found instead of a Postgres cast error.
func validNotificationID(id string) bool {
	return uuid.Validate(id) == nil
}

// Create inserts a new notification.
func (r *PGRepo) Create(ctx context.Context, n Notification) error {
	const query = `
INSERT INTO notifications (
	id, type, title, message, analysis_id, source_ref, is_read, created_at
)
VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, ''), $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		n.ID,
		n.Type,
		n.Title,
		n.Message,
		n.AnalysisID,
		n.SourceRef,
		n.Read,
		n.CreatedAt,
	)
	return err
}

// List returns notifications newest-first, optionally unread only.
func (r *PGRepo) List(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	query := `
SELECT ` + notificationColumns + `
FROM notifications
WHERE ($1 = false OR is_read = false)
ORDER BY created_at DESC, id DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount counts unread notifications.
func (r *PGRepo) UnreadCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE is_read = false`
	var count int
	if err := r.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead flags one notification as read.
func (r *PGRepo) MarkRead(ctx context.Context, id string) (Notification, error) {
	if !validNotificationID(id) {
		return Notification{}, ErrNotFound
	}
	query := `
UPDATE notifications
SET is_read = true
WHERE id = $1::uuid
RETURNING ` + notificationColumns
	n, err := scanNotification(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

// MarkAllRead flags every unread notification as read and reports how
// many changed.
func (r *PGRepo) MarkAllRead(ctx context.Context) (int, error) {
	const query = `
UPDATE notifications
SET is_read = true
WHERE is_read = false`
	res, err := r.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete removes one notification.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	if !validNotificationID(id) {
		return ErrNotFound
	}
	const query = `DELETE FROM notifications WHERE id = $1::uuid`
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotification(row interface{ Scan(dest ...any) error }) (Notification, error) {
	var n Notification
	var analysisID sql.NullString
	var sourceRef sql.NullString
	err := row.Scan(
		&n.ID,
		&n.Type,
		&n.Title,
		&n.Message,
		&analysisID,
		&sourceRef,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	if analysisID.Valid {
		n.AnalysisID = analysisID.String
	}
	if sourceRef.Valid {
		n.SourceRef = sourceRef.String
	}
	return n, nil
}
