package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/handler"
	"github.com/iliyamo/hotel-backoffice/internal/model"
)

// tagGuard answers every request itself, naming the roles it was built for.
func tagGuard(roles ...model.Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Roles", strings.Join(names, ","))
			return c.NoContent(http.StatusNoContent)
		}
	}
}

func tagAuthn(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("X-Authn", "1")
		return next(c)
	}
}

func TestAreaRoles(t *testing.T) {
	e := echo.New()
	RegisterAdmin(e, &handler.RoomHandler{}, &handler.ReservationHandler{}, &handler.ExecutiveHandler{}, tagAuthn, tagGuard)
	RegisterWalkins(e, &handler.WalkinHandler{}, tagAuthn, tagGuard)

	const (
		all   = "base-admin,hotel-admin,total-admin"
		hotel = "hotel-admin,total-admin"
		desk  = "base-admin,hotel-admin"
		exec  = "total-admin"
	)
	cases := []struct {
		method, path, roles string
	}{
		{http.MethodGet, "/v1/admin/rooms", all},
		{http.MethodPost, "/v1/admin/rooms", hotel},
		{http.MethodPatch, "/v1/admin/rooms/1", hotel},
		{http.MethodDelete, "/v1/admin/rooms/1", hotel},
		{http.MethodGet, "/v1/admin/reservations", hotel},
		{http.MethodPost, "/v1/admin/reservations", hotel},
		{http.MethodPatch, "/v1/admin/reservations/1", hotel},
		{http.MethodGet, "/v1/executive/summary", exec},
		{http.MethodPost, "/v1/walkins", desk},
		{http.MethodGet, "/v1/walkins/rooms", desk},
		{http.MethodPost, "/v1/walkins/abc/submit", desk},
		{http.MethodGet, "/v1/walkins/abc/receipt", desk},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("%s %s: status %d", tc.method, tc.path, rec.Code)
			continue
		}
		if rec.Header().Get("X-Authn") != "1" {
			t.Errorf("%s %s: not authenticated first", tc.method, tc.path)
		}
		if got := rec.Header().Get("X-Roles"); got != tc.roles {
			t.Errorf("%s %s: roles %q, want %q", tc.method, tc.path, got, tc.roles)
		}
	}
}

func TestOperationalRoutes(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}))
	for path, body := range map[string]string{"/healthz": "ok", "/metrics": "# metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != body {
			t.Errorf("%s: %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
