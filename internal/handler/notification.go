package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/todoshare/internal/service"
)

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	list, err := h.notifications.List(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, list)
}

// UnreadCount returns the number of unread notifications.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	n, err := h.notifications.CountUnread(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, map[string]int{"count": n})
}

// MarkRead flags one notification as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	n, err := h.notifications.MarkRead(c.Request().Context(), id.ID, c.Param("id"))
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, n)
}

// MarkAllRead flags every unread notification as read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	id, err := mustIdentity(c)
	if err != nil {
		return err
	}

	changed, err := h.notifications.MarkAllRead(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}

	return JSON(c, http.StatusOK, changed)
}
