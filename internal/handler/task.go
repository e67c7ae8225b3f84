package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/service"
)

// TaskHandler handles todo endpoints.
type TaskHandler struct {
	tasks   *service.TaskService
	sharing *service.SharingService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks *service.TaskService, sharing *service.SharingService) *TaskHandler {
	return &TaskHandler{tasks: tasks, sharing: sharing}
}

type taskRequest struct {
	Title   string       `json:"title" validate:"notblank"`
	DueDate *domain.Date `json:"due_date"`
}

type completedRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

type shareRequest struct {
	Email string `json:"email" validate:"notblank"`
}

// List returns the caller's own and shared todos, newest first.
func (h *TaskHandler) List(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	tasks, err := h.tasks.List(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, tasks)
}

// Create adds a todo owned by the caller.
func (h *TaskHandler) Create(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	var req taskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.Create(c.Request().Context(), id.ID, req.Title, req.DueDate)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusCreated, task)
}

// Update replaces a todo's title and due date.
func (h *TaskHandler) Update(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	var req taskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.Update(c.Request().Context(), id.ID, c.Param("id"), req.Title, req.DueDate)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, task)
}

// SetCompleted toggles a todo's completion.
func (h *TaskHandler) SetCompleted(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	var req completedRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.tasks.SetCompleted(c.Request().Context(), id.ID, c.Param("id"), *req.Completed)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, task)
}

// Delete removes a todo.
func (h *TaskHandler) Delete(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	if err := h.tasks.Delete(c.Request().Context(), id.ID, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Share shares a todo with the user registered under the given email.
func (h *TaskHandler) Share(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	var req shareRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.sharing.Share(c.Request().Context(), id, c.Param("id"), req.Email)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if result.Status == domain.ShareStatusShared {
		status = http.StatusCreated
	}
	return JSON(c, status, result)
}
