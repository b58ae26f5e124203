package model

import "time"

// Room is a bookable unit.  Price is the nightly rate in the smallest
// currency unit.
type Room struct {
	ID          uint64     `json:"id"`
	RoomNumber  string     `json:"room_number"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       int64      `json:"price"`
	Capacity    int        `json:"capacity"`
	PhotoURL    string     `json:"photo_url,omitempty"`
	Status      RoomStatus `json:"status"`
	Amenities   []string   `json:"amenities"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RoomFields is the writable part of a room.  Pointer fields are optional
// and only applied by partial updates when non-nil.
type RoomFields struct {
	RoomNumber  *string     `json:"room_number"`
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	Price       *int64      `json:"price"`
	Capacity    *int        `json:"capacity"`
	PhotoURL    *string     `json:"photo_url"`
	Status      *RoomStatus `json:"status"`
	Amenities   []string    `json:"amenities"`
}

// Reservation records a guest's stay in one room.  TotalPrice is fixed at
// creation time and never recomputed.
//
// Fields:
//  RoomNumber/RoomName – display fields joined from rooms when listing.
//  GuestCount          – must not exceed the room capacity at booking time.
//  CheckIn/CheckOut    – calendar dates (UTC midnight); CheckOut > CheckIn.
type Reservation struct {
	ID            uint64            `json:"id"`
	RoomID        uint64            `json:"room_id"`
	RoomNumber    string            `json:"room_number,omitempty"`
	RoomName      string            `json:"room_name,omitempty"`
	GuestName     string            `json:"guest_name"`
	GuestDocument string            `json:"guest_document"`
	GuestPhone    string            `json:"guest_phone"`
	GuestEmail    *string           `json:"guest_email,omitempty"`
	CheckIn       time.Time         `json:"check_in"`
	CheckOut      time.Time         `json:"check_out"`
	GuestCount    int               `json:"guest_count"`
	TotalPrice    int64             `json:"total_price"`
	Status        ReservationStatus `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	Notes         string            `json:"notes"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ReservationPatch carries a partial update.  Only non-nil fields change.
type ReservationPatch struct {
	GuestName     *string            `json:"guest_name"`
	GuestDocument *string            `json:"guest_document"`
	GuestPhone    *string            `json:"guest_phone"`
	GuestEmail    *string            `json:"guest_email"`
	Status        *ReservationStatus `json:"status"`
	PaymentMethod *string            `json:"payment_method"`
	Notes         *string            `json:"notes"`
}

// Booking is a public self-service checkout record kept in the scratch
// store.  Only the last four card digits are retained.
type Booking struct {
	TransactionID string    `json:"transaction_id"`
	RoomID        uint64    `json:"room_id"`
	RoomName      string    `json:"room_name"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	GuestPhone    string    `json:"guest_phone"`
	GuestCount    int       `json:"guest_count"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Nights        int       `json:"nights"`
	NightlyRate   int64     `json:"nightly_rate"`
	Total         int64     `json:"total"`
	CardLast4     string    `json:"card_last4"`
	CardHolder    string    `json:"card_holder"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
