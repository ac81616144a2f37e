package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ListNotifications returns the clinician notification feed, newest first.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	if c.notifications == nil {
		return ctx.JSON(http.StatusServiceUnavailable,
			map[string]string{"error": "notifications are not enabled"})
	}

	limit := 0
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		limit = parsed
	}
	unreadOnly := ctx.QueryParam("unread") == "true"

	notifications := c.notifications.List(limit, unreadOnly)
	return ctx.JSON(http.StatusOK, map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
		"unread":        c.notifications.UnreadCount(),
	})
}

// MarkNotificationRead marks one notification as read.
func (c *Controller) MarkNotificationRead(ctx echo.Context) error {
	if c.notifications == nil {
		return ctx.JSON(http.StatusServiceUnavailable,
			map[string]string{"error": "notifications are not enabled"})
	}

	if err := c.notifications.MarkRead(ctx.Param("id")); err != nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Notification not found"})
	}
	return ctx.NoContent(http.StatusNoContent)
}
