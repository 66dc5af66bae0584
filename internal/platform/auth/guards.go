package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AccountFlags are the stored permission bits for an account.
type AccountFlags struct {
	Authorized bool
	Admin      bool
}

// AccountSource resolves the permission flags for an authenticated subject.
// Unknown subjects are registered on first sight with both flags off, so a
// lookup never fails just because the account is new.
type AccountSource interface {
	Flags(ctx context.Context, ident Identity) (AccountFlags, error)
}

// RequireAuthorized rejects callers whose account has not been granted
// access by an administrator.
func RequireAuthorized(src AccountSource) echo.MiddlewareFunc {
	return requireFlag(src, func(f AccountFlags) bool { return f.Authorized })
}

// RequireAdmin rejects callers without the admin flag.
func RequireAdmin(src AccountSource) echo.MiddlewareFunc {
	return requireFlag(src, func(f AccountFlags) bool { return f.Admin })
}

func requireFlag(src AccountSource, allowed func(AccountFlags) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := CurrentIdentity(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			flags, err := src.Flags(c.Request().Context(), ident)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "account lookup failed")
			}
			if !allowed(flags) {
				return echo.NewHTTPError(http.StatusForbidden, "not authorized")
			}
			return next(c)
		}
	}
}
