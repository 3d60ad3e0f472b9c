package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/auth"
)

// JWT authenticates the bearer token and stores its claims under auth.ContextKey.
func JWT(tokens *auth.TokenIssuer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing Token"})
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			claims, err := tokens.ValidateJWT(tokenString)
			if err != nil {
				logger.Debug("Rejected token", zap.String("path", c.Path()), zap.Error(err))
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid Token"})
			}
			c.Set(auth.ContextKey, claims)
			return next(c)
		}
	}
}

// StateSource resolves the approval state of a user.
type StateSource interface {
	PermissionState(ctx context.Context, id string) (apperr.PermissionState, error)
}

// RequireApproved lets approved users through and answers everyone else with 403 and
// their state, so clients can send pending users to the waiting page.
func RequireApproved(states StateSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := auth.ClaimsFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing Token"})
			}
			state, err := states.PermissionState(c.Request().Context(), claims.UserID)
			if err != nil {
				return err
			}
			if state != apperr.Approved {
				return c.JSON(http.StatusForbidden, map[string]string{"state": string(state)})
			}
			return next(c)
		}
	}
}
