package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
)

// UserStore defines the account data access consumed by AuthService.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	UpsertOAuth(ctx context.Context, user domain.User) (*domain.User, error)
	BumpSessionEpoch(ctx context.Context, id string) (int, error)
}

// ProfileStore defines the directory used to resolve identities by email.
type ProfileStore interface {
	Create(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
	Ensure(ctx context.Context, profile domain.Profile) error
	FindByEmail(ctx context.Context, email string) (*domain.Profile, error)
}

// TaskStore defines todo data access.
type TaskStore interface {
	ListVisible(ctx context.Context, identityID string) ([]domain.Task, error)
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	FindForUpdate(ctx context.Context, id string) (*domain.Task, error)
	Create(ctx context.Context, task domain.Task) (*domain.Task, error)
	SetCompleted(ctx context.Context, id string, completed bool) (*domain.Task, error)
	Update(ctx context.Context, id, title string, dueDate *domain.Date) (*domain.Task, error)
	Delete(ctx context.Context, id string) (*domain.Task, error)
	AddShare(ctx context.Context, id, identityID string) (*domain.Task, bool, error)
}

// NotificationStore defines notification data access.
type NotificationStore interface {
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error)
	Create(ctx context.Context, recipientID string, typ domain.NotificationType, content string) (*domain.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// Transactor runs fn atomically. Stores called with the ctx passed to fn
// take part in the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// announcer publishes change events after a mutation has been stored. A
// failed publish is logged; the mutation stands.
type announcer struct {
	events changefeed.Publisher
	logger *zap.Logger
}

func (a announcer) task(ctx context.Context, typ changefeed.EventType, task domain.Task) {
	event, err := changefeed.TaskEvent(typ, task)
	if err != nil {
		a.logger.Error("build task event", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	a.publish(ctx, event)
}

func (a announcer) notification(ctx context.Context, typ changefeed.EventType, n domain.Notification) {
	event, err := changefeed.NotificationEvent(typ, n)
	if err != nil {
		a.logger.Error("build notification event", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}
	a.publish(ctx, event)
}

func (a announcer) publish(ctx context.Context, event changefeed.Event) {
	if err := a.events.Publish(ctx, event); err != nil {
		a.logger.Error("publish change event",
			zap.String("table", string(event.Table)),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
