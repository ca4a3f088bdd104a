package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/model"
)

// RequireRole rejects requests whose authenticated role is not one of
// roles with 403.  JWTAuth must run first.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ctxRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Forbidden: insufficient role"})
			}
			return next(c)
		}
	}
}
