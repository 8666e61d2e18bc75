package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks the consultant has one of the
// given roles. Admins pass every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			consultant := ConsultantFromContext(c.Request().Context())
			if consultant == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing consultant identity")
			}
			if consultant.Role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if consultant.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
