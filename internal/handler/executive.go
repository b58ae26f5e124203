package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/reservation"
)

// RoomLister lists all rooms.
type RoomLister interface {
	List(ctx context.Context) ([]model.Room, error)
}

// BookingLister lists public checkout bookings.
type BookingLister interface {
	List(ctx context.Context) ([]model.Booking, error)
}

// ExecutiveHandler serves the property-wide figures shown to total admins.
type ExecutiveHandler struct {
	Reservations reservation.Store
	Rooms        RoomLister
	Bookings     BookingLister
	Log          *slog.Logger
}

type roomSummary struct {
	Total     int                      `json:"total"`
	Counts    map[model.RoomStatus]int `json:"counts"`
	Occupancy float64                  `json:"occupancy"`
}

type checkoutSummary struct {
	Bookings int   `json:"bookings"`
	Revenue  int64 `json:"revenue"`
}

// Summary reports reservation stats, room occupancy and public checkout
// totals.  Occupancy is occupied rooms over rooms not in maintenance.
func (h *ExecutiveHandler) Summary(c echo.Context) error {
	ctx := c.Request().Context()
	log := h.Log
	if log == nil {
		log = slog.Default()
	}

	items, err := h.Reservations.List(ctx)
	if err != nil {
		log.Error("summary: listing reservations failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "summary unavailable"})
	}
	rooms, err := h.Rooms.List(ctx)
	if err != nil {
		log.Error("summary: listing rooms failed", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "summary unavailable"})
	}

	rs := roomSummary{Total: len(rooms), Counts: map[model.RoomStatus]int{
		model.RoomAvailable:   0,
		model.RoomOccupied:    0,
		model.RoomMaintenance: 0,
	}}
	for _, r := range rooms {
		rs.Counts[r.Status]++
	}
	if inService := rs.Total - rs.Counts[model.RoomMaintenance]; inService > 0 {
		rs.Occupancy = float64(rs.Counts[model.RoomOccupied]) / float64(inService)
	}

	var cs checkoutSummary
	if h.Bookings != nil {
		bookings, err := h.Bookings.List(ctx)
		if err != nil {
			log.Warn("summary: listing checkout bookings failed", "err", err)
		}
		for _, b := range bookings {
			cs.Bookings++
			cs.Revenue += b.Total
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"reservations": reservation.Compute(items),
		"rooms":        rs,
		"checkout":     cs,
	})
}
