package notice

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"StudySync/internal/apperr"
	"StudySync/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func resultStatus(r apperr.WriteResult, created bool) int {
	var verr *apperr.ValidationError
	switch {
	case r.OK() && created:
		return http.StatusCreated
	case r.OK():
		return http.StatusOK
	case errors.As(r.Err, &verr):
		return http.StatusBadRequest
	case errors.Is(r.Err, apperr.ErrNotFound):
		return http.StatusNotFound
	case r.Outcome == apperr.Partial:
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

func respond(c echo.Context, n *Notice, r apperr.WriteResult, created bool) error {
	return c.JSON(resultStatus(r, created), map[string]interface{}{
		"notice": n,
		"result": r,
	})
}

// Active lists the notices students can see.
func (h *Handler) Active(c echo.Context) error {
	ns, err := h.service.ListActive(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ns)
}

func (h *Handler) List(c echo.Context) error {
	ns, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ns)
}

func (h *Handler) Create(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	createdBy := ""
	if claims, ok := auth.ClaimsFrom(c); ok {
		createdBy = claims.UserID
	}
	n, r := h.service.Create(c.Request().Context(), createdBy, req)
	return respond(c, n, r, true)
}

func (h *Handler) Update(c echo.Context) error {
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	n, r := h.service.Update(c.Request().Context(), c.Param("id"), patch)
	return respond(c, n, r, false)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
