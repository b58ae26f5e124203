package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/reservation"
)

type fixedBookings []model.Booking

func (f fixedBookings) List(context.Context) ([]model.Booking, error) { return f, nil }

func TestExecutiveSummary(t *testing.T) {
	rooms := newMemRooms(
		model.Room{ID: 1, RoomNumber: "101", Status: model.RoomOccupied},
		model.Room{ID: 2, RoomNumber: "102", Status: model.RoomAvailable},
		model.Room{ID: 3, RoomNumber: "103", Status: model.RoomAvailable},
		model.Room{ID: 4, RoomNumber: "104", Status: model.RoomOccupied},
		model.Room{ID: 5, RoomNumber: "105", Status: model.RoomMaintenance},
	)
	res := &memReservations{items: []model.Reservation{
		{ID: 1, Status: model.ReservationConfirmed, TotalPrice: 30000},
		{ID: 2, Status: model.ReservationCompleted, TotalPrice: 20000},
		{ID: 3, Status: model.ReservationCancelled, TotalPrice: 99000},
	}}
	h := &ExecutiveHandler{Reservations: res, Rooms: rooms, Bookings: fixedBookings{{Total: 5000}, {Total: 7000}}}

	e := newEcho()
	e.GET("/summary", h.Summary)
	rec := call(e, http.MethodGet, "/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: %d", rec.Code)
	}
	var out struct {
		Reservations reservation.Stats `json:"reservations"`
		Rooms        roomSummary       `json:"rooms"`
		Checkout     checkoutSummary   `json:"checkout"`
	}
	decode(t, rec, &out)
	if out.Reservations.Total != 3 || out.Reservations.Revenue != 50000 {
		t.Fatalf("reservations = %+v", out.Reservations)
	}
	if out.Rooms.Total != 5 || out.Rooms.Counts[model.RoomMaintenance] != 1 || out.Rooms.Occupancy != 0.5 {
		t.Fatalf("rooms = %+v", out.Rooms)
	}
	if out.Checkout.Bookings != 2 || out.Checkout.Revenue != 12000 {
		t.Fatalf("checkout = %+v", out.Checkout)
	}
}
