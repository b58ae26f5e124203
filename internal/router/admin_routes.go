package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/handler"
)

// RegisterAdmin registers the back-office inventory, reservation and
// executive endpoints.  Every staff role may read rooms; writes and
// reservations need a hotel or total admin; the summary is executive only.
func RegisterAdmin(e *echo.Echo, rooms *handler.RoomHandler, res *handler.ReservationHandler, exec *handler.ExecutiveHandler, authn echo.MiddlewareFunc, guard Guard) {
	g := e.Group("/v1/admin", authn)

	// ---- Rooms ----
	g.GET("/rooms", rooms.List, guard(AllStaff...))
	g.POST("/rooms", rooms.Create, guard(HotelStaff...))
	g.PATCH("/rooms/:id", rooms.Update, guard(HotelStaff...))
	g.DELETE("/rooms/:id", rooms.Delete, guard(HotelStaff...)) // ?confirm=true

	// ---- Reservations ----
	r := g.Group("/reservations", guard(HotelStaff...))
	r.GET("", res.List)
	r.POST("", res.Create)
	r.PATCH("/:id", res.Update)

	// ---- Executive ----
	x := e.Group("/v1/executive", authn, guard(Executive...))
	x.GET("/summary", exec.Summary)
}
