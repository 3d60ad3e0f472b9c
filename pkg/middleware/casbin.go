package middleware

import (
	"net/http"
	"os"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/casbin/casbin/v2/util"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"StudySync/internal/auth"
)

// rbacModel allows a request when some allow policy matches and no deny policy does.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// NewEnforcer loads the RBAC policy file.
func NewEnforcer(policyPath string, logger *zap.Logger) (*casbin.Enforcer, error) {
	if _, err := os.Stat(policyPath); err != nil {
		return nil, errors.Wrapf(err, "rbac policy %s", policyPath)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "rbac model")
	}
	enforcer, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(policyPath))
	if err != nil {
		return nil, errors.Wrap(err, "create enforcer")
	}
	enforcer.AddFunction("keyMatch", util.KeyMatchFunc)

	policies, _ := enforcer.GetPolicy()
	logger.Info("Casbin enforcer created", zap.Int("policies", len(policies)))
	return enforcer, nil
}

// Casbin enforces the role in the JWT claims against the matched route path.
func Casbin(enforcer *casbin.Enforcer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := auth.ClaimsFrom(c)
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Unauthorized: missing user claims"})
			}
			obj := c.Path()
			act := c.Request().Method
			allowed, err := enforcer.Enforce(claims.Role, obj, act)
			if err != nil {
				logger.Error("Casbin enforce error", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
			}
			if !allowed {
				logger.Debug("Casbin denied", zap.String("role", claims.Role), zap.String("obj", obj), zap.String("act", act))
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: insufficient permissions"})
			}
			return next(c)
		}
	}
}
