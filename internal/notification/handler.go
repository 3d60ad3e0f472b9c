package notification

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/multierr"

	"StudySync/internal/auth"
	"StudySync/internal/task"
)

// TaskLister lists the tasks of one user.
type TaskLister interface {
	List(ctx context.Context, userID string) ([]task.Task, error)
}

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	service   *NotificationService
	reminders *Reminders
	timetable TimetableSource
	tasks     TaskLister
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service *NotificationService, reminders *Reminders, tt TimetableSource, tasks TaskLister) *NotificationHandler {
	return &NotificationHandler{service: service, reminders: reminders, timetable: tt, tasks: tasks}
}

func caller(c echo.Context) (string, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or missing token"})
}

func (h *NotificationHandler) List(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ns, err := h.service.List(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ns)
}

func (h *NotificationHandler) Archived(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ns, err := h.service.ListArchived(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ns)
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := h.service.UnreadCount(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": n})
}

// Due returns the notifications that should be alerted now.
func (h *NotificationHandler) Due(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ns, err := h.reminders.CheckDue(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ns)
}

// Schedule runs the dashboard-load reminder pass for the caller.
func (h *NotificationHandler) Schedule(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	entries, err := h.timetable.Fetch(ctx, false)
	if err != nil {
		return err
	}
	tasks, err := h.tasks.List(ctx, uid)
	if err != nil {
		return err
	}
	created, err := h.reminders.ScheduleAll(ctx, uid, entries, tasks)
	failures := make([]string, 0)
	for _, e := range multierr.Errors(err) {
		failures = append(failures, e.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"created": created, "failures": failures})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.service.MarkRead(c.Request().Context(), uid, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead marks everything read. Query archive=true also archives.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	archive, _ := strconv.ParseBool(c.QueryParam("archive"))
	n, err := h.service.MarkAllRead(c.Request().Context(), uid, archive)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) Archive(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.service.Archive(c.Request().Context(), uid, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) GetSettings(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	st, err := h.service.GetSettings(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *NotificationHandler) UpdateSettings(c echo.Context) error {
	uid, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var in Settings
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	st, err := h.service.UpdateSettings(c.Request().Context(), uid, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}
