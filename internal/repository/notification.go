package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/todoshare/internal/domain"
)

const notificationColumns = `id, user_id, type, content, read, created_at`

// NotificationRepository handles notification data access.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ListByRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	notifications := []domain.Notification{}
	err := conn(ctx, r.db).SelectContext(ctx, &notifications,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, recipientID)
	if err != nil {
		return nil, translate(err, "list notifications for %s", recipientID)
	}
	return notifications, nil
}

// Create inserts an unread notification.
func (r *NotificationRepository) Create(ctx context.Context, recipientID string, typ domain.NotificationType, content string) (*domain.Notification, error) {
	var result domain.Notification
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`INSERT INTO notifications (user_id, type, content)
		 VALUES ($1, $2, $3)
		 RETURNING `+notificationColumns,
		recipientID, typ, content,
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "create notification for %s", recipientID)
	}
	return &result, nil
}

// MarkRead flags one of the recipient's notifications as read. Rows owned by
// someone else are reported as not found.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (*domain.Notification, error) {
	var result domain.Notification
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`UPDATE notifications SET read = true
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+notificationColumns,
		id, recipientID,
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "mark notification %s read", id)
	}
	return &result, nil
}

// MarkAllRead flags every unread notification of the recipient in one
// statement and returns the rows it changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	changed := []domain.Notification{}
	err := conn(ctx, r.db).SelectContext(ctx, &changed,
		`UPDATE notifications SET read = true
		 WHERE user_id = $1 AND read = false
		 RETURNING `+notificationColumns, recipientID)
	if err != nil {
		return nil, translate(err, "mark all notifications read for %s", recipientID)
	}
	return changed, nil
}

// CountUnread counts the recipient's unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := conn(ctx, r.db).GetContext(ctx, &n,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND read = false`, recipientID)
	if err != nil {
		return 0, translate(err, "count unread notifications for %s", recipientID)
	}
	return n, nil
}
