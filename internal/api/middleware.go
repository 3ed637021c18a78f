// middleware.go - Principal resolution and role enforcement
package api

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// principalContextKey is the echo context key the resolved principal is
// stored under.
const principalContextKey = "principal"

// AdminChecker reports whether a principal is on the administrative
// allow-list.
type AdminChecker interface {
	IsAdmin(principal string) bool
}

// Principal returns the authenticated principal for the request, or an
// empty string if none was resolved.
func Principal(c echo.Context) string {
	principal, _ := c.Get(principalContextKey).(string)
	return principal
}

// RequireAuth extracts the authenticated principal from headerName and
// rejects requests that carry none. Session issuance happens upstream; an
// absent or blank header means the request never passed authentication.
func RequireAuth(headerName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := strings.TrimSpace(c.Request().Header.Get(headerName))
			if principal == "" {
				return NewUnauthorizedError("authentication required")
			}
			c.Set(principalContextKey, principal)
			return next(c)
		}
	}
}

// RequireAdmin rejects authenticated requests whose principal is not on
// the administrative allow-list. Must run after RequireAuth.
func RequireAdmin(admins AdminChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !admins.IsAdmin(Principal(c)) {
				return NewForbiddenError("administrative privileges required")
			}
			return next(c)
		}
	}
}
