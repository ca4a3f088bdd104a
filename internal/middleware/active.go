package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/model"
)

// AccountLookup loads an account by role and id.
type AccountLookup interface {
	GetByID(ctx context.Context, role model.Role, id uint64) (model.Account, error)
}

// RequireActive re-reads the authenticated account on every request and
// rejects it with 401 when it no longer exists or has been deactivated.
// A token issued before deactivation therefore stops working at once.
func RequireActive(accounts AccountLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, role, ok := Identity(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
			}
			a, err := accounts.GetByID(c.Request().Context(), role, id)
			if errors.Is(err, sql.ErrNoRows) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Account not found"})
			}
			if err != nil {
				slog.Error("active check failed", "role", role, "account_id", id, "error", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
			}
			if !a.Active() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Account is inactive"})
			}
			return next(c)
		}
	}
}
