package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/campusmentor/campusmentor/core/user"
)

// requireCapability lets through the users whose role grants at least one of caps.
// It must run after jwtMiddleware.
func requireCapability(caps ...user.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.Role.CanAny(caps...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
