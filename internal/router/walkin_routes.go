package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/handler"
)

// RegisterWalkins registers the walk-in wizard under /v1/walkins for front
// desk staff.  Drafts are private to the staff member who started them.
func RegisterWalkins(e *echo.Echo, h *handler.WalkinHandler, authn echo.MiddlewareFunc, guard Guard) {
	g := e.Group("/v1/walkins", authn, guard(FrontDesk...))
	g.POST("", h.Start)
	g.GET("/rooms", h.AvailableRooms)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Discard)
	g.POST("/:id/room", h.SelectRoom)
	g.POST("/:id/guest", h.SubmitGuest)
	g.POST("/:id/payment", h.SubmitPayment)
	g.POST("/:id/submit", h.Submit)
	g.POST("/:id/back", h.Back)
	g.GET("/:id/receipt", h.Receipt)
}
