package timetable

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"StudySync/internal/apperr"
)

// Handler handles HTTP requests for the timetable.
type Handler struct {
	controller *Controller
	pageSize   int
}

// NewHandler creates a new timetable Handler.
func NewHandler(controller *Controller, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Handler{controller: controller, pageSize: pageSize}
}

// List returns one filtered page of the timetable. Query: day, subject, page, force.
func (h *Handler) List(c echo.Context) error {
	var f Filter
	if err := c.Bind(&f); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid query"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	force, _ := strconv.ParseBool(c.QueryParam("force"))

	view, err := h.controller.Query(c.Request().Context(), force, f, page, h.pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Upload accepts either a JSON UploadRequest or a multipart CSV file field "file" with a
// "replace" form value.
func (h *Handler) Upload(c echo.Context) error {
	var req UploadRequest
	if file, err := c.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unreadable file"})
		}
		defer src.Close()
		entries, err := ParseCSV(src)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		req.Entries = entries
		req.Replace, _ = strconv.ParseBool(c.FormValue("replace"))
	} else if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	result := h.controller.Upload(c.Request().Context(), req.Entries, req.Replace)
	return c.JSON(resultStatus(result), result)
}

func resultStatus(r apperr.WriteResult) int {
	switch {
	case r.OK():
		return http.StatusOK
	case r.FailedStep == "validate":
		return http.StatusBadRequest
	case r.Outcome == apperr.Partial:
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}

// Export downloads the whole timetable as CSV.
func (h *Handler) Export(c echo.Context) error {
	entries, err := h.controller.Fetch(c.Request().Context(), false)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="timetable.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

// Sync publishes admin edits to students by recording a sync time.
func (h *Handler) Sync(c echo.Context) error {
	at, err := h.controller.SyncToStudents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]time.Time{"synced_at": at})
}

// LastSync reports when the timetable was last synced, null when never.
func (h *Handler) LastSync(c echo.Context) error {
	at, err := h.controller.LastSync(c.Request().Context())
	if err != nil {
		return err
	}
	if at.IsZero() {
		return c.JSON(http.StatusOK, map[string]interface{}{"last_sync": nil})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"last_sync": at})
}

func (h *Handler) Create(c echo.Context) error {
	var e Entry
	if err := c.Bind(&e); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	created, err := h.controller.Create(c.Request().Context(), e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Update(c echo.Context) error {
	var e Entry
	if err := c.Bind(&e); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	updated, err := h.controller.Update(c.Request().Context(), c.Param("id"), e)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.controller.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
