package memory

import (
	"context"

	"github.com/sumire/todoshare/internal/domain"
)

// Notifications is the in-memory notification collection.
type Notifications struct {
	s *Store
}

// ListByRecipient returns the recipient's notifications, newest first.
func (n *Notifications) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	defer n.s.lock(ctx)()
	recs := n.forRecipient(recipientID)
	sortNewestFirst(recs, func(r *notificationRecord) (int64, int64) {
		return r.notification.CreatedAt.UnixNano(), r.seq
	})

	out := make([]domain.Notification, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.notification)
	}
	return out, nil
}

func (n *Notifications) forRecipient(recipientID string) []*notificationRecord {
	var recs []*notificationRecord
	for _, rec := range n.s.notifications {
		if rec.notification.UserID == recipientID {
			recs = append(recs, rec)
		}
	}
	return recs
}

// Create stores an unread notification.
func (n *Notifications) Create(ctx context.Context, recipientID string, typ domain.NotificationType, content string) (*domain.Notification, error) {
	defer n.s.lock(ctx)()
	seq, now := n.s.next()
	notification := domain.Notification{
		ID:        newID(),
		UserID:    recipientID,
		Type:      typ,
		Content:   content,
		CreatedAt: now,
	}
	n.s.notifications[notification.ID] = &notificationRecord{seq: seq, notification: notification}
	return &notification, nil
}

// MarkRead flags one of the recipient's notifications read.
func (n *Notifications) MarkRead(ctx context.Context, id, recipientID string) (*domain.Notification, error) {
	defer n.s.lock(ctx)()
	rec, ok := n.s.notifications[id]
	if !ok || rec.notification.UserID != recipientID {
		return nil, domain.ErrNotFound
	}
	rec.notification.Read = true
	notification := rec.notification
	return &notification, nil
}

// MarkAllRead flags every unread notification of the recipient and returns those rows.
func (n *Notifications) MarkAllRead(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	defer n.s.lock(ctx)()
	changed := []domain.Notification{}
	for _, rec := range n.forRecipient(recipientID) {
		if rec.notification.Read {
			continue
		}
		rec.notification.Read = true
		changed = append(changed, rec.notification)
	}
	return changed, nil
}

// CountUnread counts the recipient's unread notifications.
func (n *Notifications) CountUnread(ctx context.Context, recipientID string) (int, error) {
	defer n.s.lock(ctx)()
	count := 0
	for _, rec := range n.forRecipient(recipientID) {
		if !rec.notification.Read {
			count++
		}
	}
	return count, nil
}
