package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
)

// StatusOf maps an error from a service to its HTTP status.
func StatusOf(err error) int {
	var (
		verr *apperr.ValidationError
		herr *echo.HTTPError
	)
	switch {
	case errors.As(err, &herr):
		return herr.Code
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case apperr.IsFetch(err), apperr.IsWrite(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ErrorHandler writes every handler error as JSON. Validation failures carry their fields.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := StatusOf(err)
		body := map[string]interface{}{"error": err.Error()}

		var (
			verr *apperr.ValidationError
			herr *echo.HTTPError
		)
		switch {
		case errors.As(err, &herr):
			body["error"] = herr.Message
		case errors.As(err, &verr):
			body["error"] = "Validation failed"
			body["fields"] = verr.Fields
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed", zap.String("method", c.Request().Method), zap.String("path", c.Path()), zap.Error(err))
			if status == http.StatusInternalServerError {
				body["error"] = "Internal server error"
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
