package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/identity"
	"github.com/iliyamo/hotel-backoffice/internal/session"
)

// Context keys set by Authenticate.
const (
	ctxManager   = "session_manager"
	ctxSessionID = "session_id"
	ctxUserID    = "user_id"
)

// Sessions is the part of session.Registry the middleware needs.
type Sessions interface {
	Authenticate(ctx context.Context, accessToken string) (*identity.Session, *session.Manager, error)
}

// Authenticate validates the Bearer access token and attaches the
// session's shared manager to the request.  Handlers reach it through
// Manager, SessionID and UserID.
func Authenticate(sessions Sessions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			sess, mgr, err := sessions.Authenticate(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, identity.ErrInvalidSession) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				c.Logger().Errorf("session restore failed: %v", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session unavailable"})
			}
			c.Set(ctxManager, mgr)
			c.Set(ctxSessionID, sess.ID)
			c.Set(ctxUserID, strconv.FormatUint(sess.User.ID, 10))
			return next(c)
		}
	}
}

// BearerToken reads the token of an "Authorization: Bearer" header.
func BearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

// Manager returns the session manager attached by Authenticate.
func Manager(c echo.Context) (*session.Manager, bool) {
	m, ok := c.Get(ctxManager).(*session.Manager)
	return m, ok && m != nil
}

// SessionID returns the session id attached by Authenticate.
func SessionID(c echo.Context) string {
	s, _ := c.Get(ctxSessionID).(string)
	return s
}

// UserID returns the authenticated user id, or "anon".
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
