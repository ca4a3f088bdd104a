package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/model"
)

// Identity returns the account id and role stored by JWTAuth.
func Identity(c echo.Context) (uint64, model.Role, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	if !ok || id == 0 {
		return 0, "", false
	}
	role, ok := model.ParseRole(stringValue(c.Get(ctxRole)))
	if !ok {
		return 0, "", false
	}
	return id, role, true
}

// Email returns the email claim of the authenticated account.
func Email(c echo.Context) string { return stringValue(c.Get(ctxEmail)) }

// userKey identifies the caller for rate limiting and logging.  Ids are
// only unique within a role, so both are part of the key.
func userKey(c echo.Context) string {
	id, role, ok := Identity(c)
	if !ok {
		return "guest"
	}
	return string(role) + "-" + strconv.FormatUint(id, 10)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
