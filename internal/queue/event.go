// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
)

// ReservationConfirmedQueue is the durable queue carrying
// ReservationConfirmedEvent messages.
const ReservationConfirmedQueue = "reservation.confirmed"

// Channels a confirmed stay can come from.
const (
	ChannelWalkIn   = "walkin"
	ChannelAdmin    = "admin"
	ChannelCheckout = "checkout"
)

// ReservationConfirmedEvent is published when a stay is confirmed, either
// by staff or by a public checkout.  It carries enough to log or notify
// without querying the primary database.
type ReservationConfirmedEvent struct {
	Channel       string `json:"channel"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	RoomID        uint64 `json:"room_id"`
	RoomNumber    string `json:"room_number,omitempty"`
	RoomName      string `json:"room_name,omitempty"`
	GuestName     string `json:"guest_name"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Nights        int    `json:"nights"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`
	StaffUserID   uint64 `json:"staff_user_id,omitempty"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// FromReservation builds the event for a staff-entered reservation.
func FromReservation(r model.Reservation, channel string, staffUserID uint64, at time.Time) ReservationConfirmedEvent {
	nights, _ := pricing.Nights(r.CheckIn, r.CheckOut)
	return ReservationConfirmedEvent{
		Channel:       channel,
		ReservationID: r.ID,
		RoomID:        r.RoomID,
		RoomNumber:    r.RoomNumber,
		RoomName:      r.RoomName,
		GuestName:     r.GuestName,
		CheckIn:       r.CheckIn.Format(pricing.DateLayout),
		CheckOut:      r.CheckOut.Format(pricing.DateLayout),
		Nights:        nights,
		TotalAmount:   r.TotalPrice,
		PaymentMethod: r.PaymentMethod,
		StaffUserID:   staffUserID,
		ConfirmedAt:   at.UTC().Format(time.RFC3339),
	}
}

// FromBooking builds the event for a public checkout.
func FromBooking(b model.Booking) ReservationConfirmedEvent {
	return ReservationConfirmedEvent{
		Channel:       ChannelCheckout,
		TransactionID: b.TransactionID,
		RoomID:        b.RoomID,
		RoomName:      b.RoomName,
		GuestName:     b.GuestName,
		CheckIn:       b.CheckIn.Format(pricing.DateLayout),
		CheckOut:      b.CheckOut.Format(pricing.DateLayout),
		Nights:        b.Nights,
		TotalAmount:   b.Total,
		PaymentMethod: string(model.PaymentCard),
		ConfirmedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
