package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
)

// NotificationService exposes the caller's notification log.
type NotificationService struct {
	notifications NotificationStore
	announcer     announcer
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(notifications NotificationStore, events changefeed.Publisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		announcer:     announcer{events: events, logger: logger},
	}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	list, err := s.notifications.ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// CountUnread returns how many of the caller's notifications are unread.
func (s *NotificationService) CountUnread(ctx context.Context, recipientID string) (int, error) {
	n, err := s.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) (*domain.Notification, error) {
	n, err := s.notifications.MarkRead(ctx, id, recipientID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	s.announcer.notification(ctx, changefeed.EventUpdate, *n)
	return n, nil
}

// MarkAllRead flags every unread notification of the caller as read and
// returns the rows that changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	changed, err := s.notifications.MarkAllRead(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("mark all read: %w", err)
	}

	for _, n := range changed {
		s.announcer.notification(ctx, changefeed.EventUpdate, n)
	}
	return changed, nil
}
