package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/guard"
	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/model"
)

// RequireRole admits the request only when the session's profile carries
// one of roles.  It must run after Authenticate.  While the session is
// still resolving it waits up to settle for a decision; past that it
// answers 503 with Retry-After instead of guessing.
//
// Redirect decisions map to 401 for missing sessions and 403 for a missing
// profile or the wrong role.  The body names the redirect target and the
// notice the client should show, and Location carries the target.
func RequireRole(settle time.Duration, m *metrics.Metrics, roles ...model.Role) echo.MiddlewareFunc {
	required := model.NewRoleSet(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			mgr, ok := Manager(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			gate := guard.NewGate(mgr, required, nil)
			defer gate.Close()

			ctx := c.Request().Context()
			if settle > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, settle)
				defer cancel()
			}
			d, _ := gate.Await(ctx)
			m.Guard(d.Outcome.String(), d.State.String())

			switch d.Outcome {
			case guard.Render:
				return next(c)
			case guard.Wait:
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter(settle)))
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"error": "session is still resolving",
					"state": d.State.String(),
				})
			}
			return WriteRedirect(c, d)
		}
	}
}

// WriteRedirect renders a guard redirect decision.
func WriteRedirect(c echo.Context, d guard.Decision) error {
	status, msg := http.StatusForbidden, "access denied"
	switch d.State {
	case guard.StateUnauthenticated:
		status, msg = http.StatusUnauthorized, "login required"
	case guard.StateNoProfile:
		msg = "profile unavailable"
	}
	c.Response().Header().Set(echo.HeaderLocation, d.Target)
	return c.JSON(status, echo.Map{
		"error":    msg,
		"notice":   string(d.Notice),
		"redirect": d.Target,
		"state":    d.State.String(),
	})
}

func retryAfter(settle time.Duration) int {
	secs := int(settle / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
