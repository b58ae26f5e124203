package model

import "fmt"

// RoomStatus is the occupancy state of a room.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomOccupied, RoomMaintenance:
		return true
	}
	return false
}

func ParseRoomStatus(s string) (RoomStatus, error) {
	st := RoomStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown room status %q", s)
	}
	return st, nil
}

// ReservationStatus is the lifecycle state of a reservation.  Statuses only
// change through staff action; nothing advances them by date.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// AllReservationStatuses is the display order used by statistics.
var AllReservationStatuses = []ReservationStatus{
	ReservationPending, ReservationConfirmed, ReservationCompleted, ReservationCancelled,
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCompleted, ReservationCancelled:
		return true
	}
	return false
}

func ParseReservationStatus(s string) (ReservationStatus, error) {
	st := ReservationStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", s)
	}
	return st, nil
}

// CanTransition reports whether staff may move a reservation from s to to.
// Setting the current status again is always allowed.
func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	if s == to {
		return true
	}
	switch s {
	case ReservationPending:
		return to == ReservationConfirmed || to == ReservationCancelled
	case ReservationConfirmed:
		return to == ReservationCompleted || to == ReservationCancelled
	case ReservationCompleted, ReservationCancelled:
		return false
	}
	return false
}

// Revenue reports whether reservations in this status count toward revenue.
func (s ReservationStatus) Revenue() bool {
	switch s {
	case ReservationConfirmed, ReservationCompleted:
		return true
	case ReservationPending, ReservationCancelled:
		return false
	}
	return false
}

// PaymentMethod is how a walk-in guest settles the bill.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return m, nil
}
