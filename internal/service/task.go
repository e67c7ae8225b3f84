package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
)

// TaskService handles todo operations for an authenticated caller.
type TaskService struct {
	tasks     TaskStore
	announcer announcer
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks TaskStore, events changefeed.Publisher, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:     tasks,
		announcer: announcer{events: events, logger: logger},
	}
}

// List returns every task the caller owns or has been shared, newest first.
func (s *TaskService) List(ctx context.Context, callerID string) ([]domain.Task, error) {
	tasks, err := s.tasks.ListVisible(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Create adds a task owned by the caller.
func (s *TaskService) Create(ctx context.Context, callerID, title string, dueDate *domain.Date) (*domain.Task, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.Create(ctx, domain.Task{
		UserID:  callerID,
		Title:   title,
		DueDate: dueDate,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.announcer.task(ctx, changefeed.EventInsert, *task)
	return task, nil
}

// SetCompleted toggles completion. The owner and every shared recipient may
// do this.
func (s *TaskService) SetCompleted(ctx context.Context, callerID, taskID string, completed bool) (*domain.Task, error) {
	if _, err := s.visible(ctx, callerID, taskID); err != nil {
		return nil, err
	}

	task, err := s.tasks.SetCompleted(ctx, taskID, completed)
	if err != nil {
		return nil, fmt.Errorf("set completed: %w", err)
	}

	s.announcer.task(ctx, changefeed.EventUpdate, *task)
	return task, nil
}

// Update replaces the title and due date. Only the owner may edit.
func (s *TaskService) Update(ctx context.Context, callerID, taskID, title string, dueDate *domain.Date) (*domain.Task, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, callerID, taskID); err != nil {
		return nil, err
	}

	task, err := s.tasks.Update(ctx, taskID, title, dueDate)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.announcer.task(ctx, changefeed.EventUpdate, *task)
	return task, nil
}

// Delete removes a task. Notifications that mention it are kept.
func (s *TaskService) Delete(ctx context.Context, callerID, taskID string) error {
	if _, err := s.owned(ctx, callerID, taskID); err != nil {
		return err
	}

	task, err := s.tasks.Delete(ctx, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	s.announcer.task(ctx, changefeed.EventDelete, *task)
	return nil
}

// visible loads the task and hides it from callers who cannot see it.
func (s *TaskService) visible(ctx context.Context, callerID, taskID string) (*domain.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	if !task.VisibleTo(callerID) {
		return nil, fmt.Errorf("find task: %w", domain.ErrNotFound)
	}
	return task, nil
}

func (s *TaskService) owned(ctx context.Context, callerID, taskID string) (*domain.Task, error) {
	task, err := s.visible(ctx, callerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != callerID {
		return nil, fmt.Errorf("%w: only the owner can change this todo", domain.ErrForbidden)
	}
	return task, nil
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &domain.ValidationError{Field: "title", Message: "title is required"}
	}
	return title, nil
}
