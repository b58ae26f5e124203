package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/guard"
	"github.com/iliyamo/hotel-backoffice/internal/identity"
	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/middleware"
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/session"
	"github.com/iliyamo/hotel-backoffice/internal/utils"
)

// SessionService is the part of session.Registry the auth endpoints use.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*identity.Session, *session.Manager, error)
	Refresh(ctx context.Context, rawRefresh string) (*identity.Session, error)
	LogoutRefresh(ctx context.Context, rawRefresh string) error
	ChangePassword(ctx context.Context, sid, current, next string) error
}

// AuthHandler bundles dependencies for auth and session endpoints.
type AuthHandler struct {
	Sessions SessionService
	Settle   time.Duration
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

func NewAuthHandler(s SessionService, settle time.Duration, m *metrics.Metrics, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Sessions: s, Settle: settle, Metrics: m, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required,notblank"`
}

type passwordReq struct {
	Current string `json:"current_password" validate:"required"`
	Next    string `json:"new_password" validate:"required,min=8"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
}

type sessionResp struct {
	Phase   string         `json:"phase"`
	Loading bool           `json:"loading"`
	User    *userPart      `json:"user"`
	Profile *model.Profile `json:"profile"`
	Error   string         `json:"error,omitempty"`
}

type authResp struct {
	SessionID string      `json:"session_id"`
	Session   sessionResp `json:"session"`
	Access    tokenPart   `json:"access"`
	Refresh   tokenPart   `json:"refresh"`
}

func sessionBody(s session.State) sessionResp {
	out := sessionResp{Phase: s.Phase.String(), Loading: s.Loading(), Profile: s.Profile, Error: s.Err}
	if s.User != nil {
		out.User = &userPart{ID: s.User.ID, Email: s.User.Email}
	}
	return out
}

func tokens(sess *identity.Session) (tokenPart, tokenPart) {
	return tokenPart{Token: sess.AccessToken, Expires: sess.AccessExpires},
		tokenPart{Token: sess.RefreshToken, Expires: sess.RefreshExpires}
}

// settle waits up to h.Settle for the manager to leave its loading phases.
func (h *AuthHandler) settle(ctx context.Context, m *session.Manager) session.State {
	if h.Settle > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Settle)
		defer cancel()
	}
	s, _ := m.Wait(ctx)
	return s
}

// Login signs in and returns the token pair together with the resolved
// session.  The profile may still be loading when resolution outlasts the
// settle timeout.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	sess, mgr, err := h.Sessions.Login(c.Request().Context(), email, req.Password)
	if err != nil {
		kind := identity.KindOf(err)
		h.Metrics.SignIn(kind.String())
		status := http.StatusInternalServerError
		switch kind {
		case identity.KindInvalidCredentials:
			status = http.StatusUnauthorized
		case identity.KindUnconfirmed:
			status = http.StatusForbidden
		case identity.KindRateLimited:
			status = http.StatusTooManyRequests
		default:
			h.Log.Error("sign-in failed", "email", email, "err", err)
		}
		msg := "sign-in failed"
		var ae *identity.AuthError
		if errors.As(err, &ae) {
			msg = ae.Error()
		}
		return c.JSON(status, echo.Map{"error": msg, "kind": kind.String()})
	}
	h.Metrics.SignIn("success")

	access, refresh := tokens(sess)
	return c.JSON(http.StatusOK, authResp{
		SessionID: sess.ID,
		Session:   sessionBody(h.settle(c.Request().Context(), mgr)),
		Access:    access,
		Refresh:   refresh,
	})
}

// Refresh rotates the refresh token and issues a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	sess, err := h.Sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidSession) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		h.Log.Error("refresh failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	access, refresh := tokens(sess)
	return c.JSON(http.StatusOK, echo.Map{"session_id": sess.ID, "access": access, "refresh": refresh})
}

// Logout ends the session a refresh token belongs to.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if err := h.Sessions.LogoutRefresh(c.Request().Context(), req.RefreshToken); err != nil {
		if errors.Is(err, identity.ErrInvalidSession) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		h.Log.Error("logout failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword replaces the signed-in user's password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req passwordReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	err := h.Sessions.ChangePassword(c.Request().Context(), middleware.SessionID(c), req.Current, req.Next)
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case identity.KindOf(err) == identity.KindInvalidCredentials:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "current password is incorrect"})
	case errors.Is(err, utils.ErrPasswordTooShort):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": echo.Map{"new_password": "must be at least 8 characters"}})
	case errors.Is(err, session.ErrUnknownSession), errors.Is(err, identity.ErrNoSession):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
	}
	h.Log.Error("password change failed", "user_id", middleware.UserID(c), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
}

// Session reports the current state of the caller's session.
func (h *AuthHandler) Session(c echo.Context) error {
	mgr, ok := middleware.Manager(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	return c.JSON(http.StatusOK, sessionBody(h.settle(c.Request().Context(), mgr)))
}

type accessResp struct {
	Outcome  string `json:"outcome"`
	State    string `json:"state"`
	Redirect string `json:"redirect,omitempty"`
	Notice   string `json:"notice,omitempty"`
}

// Access answers whether the caller may enter an area admitting ?roles=,
// without entering it.  Clients use it to pick what to render.
func (h *AuthHandler) Access(c echo.Context) error {
	required, err := model.ParseRoleSet(c.QueryParam("roles"))
	if err != nil || len(required) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "roles must list base-admin, hotel-admin or total-admin"})
	}
	mgr, ok := middleware.Manager(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	gate := guard.NewGate(mgr, required, nil)
	defer gate.Close()

	ctx := c.Request().Context()
	if h.Settle > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Settle)
		defer cancel()
	}
	d, _ := gate.Await(ctx)
	h.Metrics.Guard(d.Outcome.String(), d.State.String())
	return c.JSON(http.StatusOK, accessResp{
		Outcome:  d.Outcome.String(),
		State:    d.State.String(),
		Redirect: d.Target,
		Notice:   string(d.Notice),
	})
}

// Health is the liveness probe.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
