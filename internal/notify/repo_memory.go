package notify

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores notifications in memory.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Notification
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Notification)}
}

// Create stores the notification.
func (r *MemoryRepo) Create(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[n.ID] = n
	return nil
}

// List returns notifications newest-first, optionally unread only.
func (r *MemoryRepo) List(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Notification{}
	for _, n := range r.byID {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UnreadCount counts unread notifications.
func (r *MemoryRepo) UnreadCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.byID {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flags one notification as read.
func (r *MemoryRepo) MarkRead(ctx context.Context, id string) (Notification, error) {
	if err := ctx.Err(); err != nil {
		return Notification{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	n.Read = true
	r.byID[id] = n
	return n, nil
}

// MarkAllRead flags every unread notification as read and reports how
// many changed.
func (r *MemoryRepo) MarkAllRead(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := 0
	for id, n := range r.byID {
		if n.Read {
			continue
		}
		n.Read = true
		r.byID[id] = n
		updated++
	}
	return updated, nil
}

// Delete removes one notification.
func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
