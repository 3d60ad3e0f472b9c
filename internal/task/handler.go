package task

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"StudySync/internal/auth"
)

// Handler serves the task endpoints of the authenticated user.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func userID(c echo.Context) (string, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or missing token"})
}

func (h *Handler) List(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return unauthorized(c)
	}
	tasks, err := h.service.List(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *Handler) Create(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return unauthorized(c)
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	t, err := h.service.Create(c.Request().Context(), uid, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) Update(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return unauthorized(c)
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	t, err := h.service.Update(c.Request().Context(), uid, c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Complete sets the completion flag from {"completed": bool}.
func (h *Handler) Complete(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Completed bool `json:"completed"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	t, err := h.service.SetCompleted(c.Request().Context(), uid, c.Param("id"), body.Completed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Delete(c echo.Context) error {
	uid, ok := userID(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.service.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
