package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKey is where the JWT middleware stores *JWTClaims.
const ContextKey = "user"

// ClaimsFrom returns the claims of the authenticated caller.
func ClaimsFrom(c echo.Context) (*JWTClaims, bool) {
	claims, ok := c.Get(ContextKey).(*JWTClaims)
	return claims, ok && claims != nil
}

type AuthHandler struct {
	service *UserService
}

func NewAuthHandler(service *UserService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid Request"})
	}
	if req.Role == RoleAdmin {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Admin accounts cannot self-register"})
	}
	user, err := h.service.RegisterUser(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"state":   user.PermissionState(),
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var cred Credential
	if err := c.Bind(&cred); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	result, err := h.service.AuthenticateUser(c.Request().Context(), cred)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Profile(c echo.Context) error {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or missing token"})
	}
	user, err := h.service.Profile(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":  user,
		"state": user.PermissionState(),
	})
}

func (h *AuthHandler) PendingUsers(c echo.Context) error {
	users, err := h.service.PendingUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AuthHandler) PendingCount(c echo.Context) error {
	n, err := h.service.PendingCount(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": n})
}

func (h *AuthHandler) Approve(c echo.Context) error {
	user, err := h.service.Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Deny(c echo.Context) error {
	user, err := h.service.Deny(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Students(c echo.Context) error {
	users, err := h.service.Students(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AuthHandler) CreateStudent(c echo.Context) error {
	var req StudentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	user, err := h.service.CreateStudent(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) UpdateStudent(c echo.Context) error {
	var req StudentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	user, err := h.service.UpdateStudent(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) DeleteStudent(c echo.Context) error {
	if err := h.service.DeleteStudent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
