package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
)

// ShareResult is the outcome of a share attempt. Notification is nil when
// the task was already shared with the target.
type ShareResult struct {
	Status       domain.ShareStatus   `json:"status"`
	Task         *domain.Task         `json:"task"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// SharingService shares a task with another registered user and notifies
// them.
type SharingService struct {
	tx            Transactor
	tasks         TaskStore
	profiles      ProfileStore
	notifications NotificationStore
	announcer     announcer
	logger        *zap.Logger
}

// NewSharingService creates a new SharingService.
func NewSharingService(tx Transactor, tasks TaskStore, profiles ProfileStore, notifications NotificationStore, events changefeed.Publisher, logger *zap.Logger) *SharingService {
	return &SharingService{
		tx:            tx,
		tasks:         tasks,
		profiles:      profiles,
		notifications: notifications,
		announcer:     announcer{events: events, logger: logger},
		logger:        logger,
	}
}

// Share adds the user registered under email to the task's shared-with list
// and notifies them. The list change and the notification are stored in one
// transaction. Sharing with someone already on the list returns
// ShareStatusAlreadyShared and changes nothing.
func (s *SharingService) Share(ctx context.Context, sharer domain.Identity, taskID, email string) (*ShareResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &domain.ValidationError{Field: "email", Message: "email is required"}
	}

	target, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrShareTargetNotFound
		}
		return nil, fmt.Errorf("resolve share target: %w", err)
	}

	var result ShareResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		task, err := s.tasks.FindForUpdate(ctx, taskID)
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}
		if !task.VisibleTo(sharer.ID) {
			return fmt.Errorf("load task: %w", domain.ErrNotFound)
		}
		if task.UserID != sharer.ID {
			return fmt.Errorf("%w: only the owner can share this todo", domain.ErrForbidden)
		}
		if target.ID == sharer.ID {
			return &domain.ValidationError{Field: "email", Message: "you cannot share a todo with yourself"}
		}

		if task.SharedWith.Contains(target.ID) {
			result = ShareResult{Status: domain.ShareStatusAlreadyShared, Task: task}
			return nil
		}

		updated, added, err := s.tasks.AddShare(ctx, taskID, target.ID)
		if err != nil {
			return fmt.Errorf("add share: %w", err)
		}
		if !added {
			result = ShareResult{Status: domain.ShareStatusAlreadyShared, Task: updated}
			return nil
		}

		n, err := s.notifications.Create(ctx, target.ID, domain.NotificationShare,
			domain.ShareContent(sharer.Email, updated.Title))
		if err != nil {
			return fmt.Errorf("notify share target: %w", err)
		}

		result = ShareResult{Status: domain.ShareStatusShared, Task: updated, Notification: n}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status == domain.ShareStatusShared {
		s.logger.Info("task shared",
			zap.String("task_id", taskID),
			zap.String("sharer_id", sharer.ID),
			zap.String("target_id", target.ID),
		)
		s.announcer.task(ctx, changefeed.EventUpdate, *result.Task)
		s.announcer.notification(ctx, changefeed.EventInsert, *result.Notification)
	}

	return &result, nil
}
