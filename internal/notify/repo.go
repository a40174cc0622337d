package notify

import "context"

// Repo defines persistence operations for notifications.
type Repo interface {
	Create(ctx context.Context, n Notification) error
	List(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) (Notification, error)
	MarkAllRead(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}
