package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/handler"
	"github.com/iliyamo/hotel-backoffice/internal/model"
)

// Guard builds the role middleware for an area; it runs after
// middleware.Authenticate.
type Guard func(roles ...model.Role) echo.MiddlewareFunc

// Areas and the roles they admit.
var (
	AllStaff   = []model.Role{model.RoleBaseAdmin, model.RoleHotelAdmin, model.RoleTotalAdmin}
	HotelStaff = []model.Role{model.RoleHotelAdmin, model.RoleTotalAdmin}
	FrontDesk  = []model.Role{model.RoleBaseAdmin, model.RoleHotelAdmin}
	Executive  = []model.Role{model.RoleTotalAdmin}
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil.
func RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers sign-in and session routes.  Token exchanges live
// under /v1/auth and are rate limited; session introspection needs a bearer
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/password", a.ChangePassword, authn)

	s := e.Group("/v1/session", authn)
	s.GET("", a.Session)
	s.GET("/access", a.Access)
}

// RegisterPublic registers the guest-facing catalog and checkout.  The
// catalog is served through the response cache; checkout is rate limited.
func RegisterPublic(e *echo.Echo, p *handler.PublicRooms, ch *handler.CheckoutHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/v1/rooms", p.List, cache)
	e.GET("/v1/rooms/:id", p.Get, cache)

	e.POST("/v1/checkout", ch.Checkout, limit)
	e.GET("/v1/checkout/:txid", ch.Confirmation)
}
