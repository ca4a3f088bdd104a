package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/utils"
)

// Context keys populated by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the account id (uint64), role and email from its claims in
// the request context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid token"})
			}
			c.Set(ctxUserID, claims.AccountID)
			c.Set(ctxRole, string(claims.Role))
			c.Set(ctxEmail, claims.Email)
			return next(c)
		}
	}
}
