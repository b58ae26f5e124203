package wizard

import (
	"time"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
)

// Guest is the guest-data form.  Dates are YYYY-MM-DD.
type Guest struct {
	Name       string `json:"name" validate:"required,notblank,max=120"`
	Document   string `json:"document" validate:"required,notblank,max=40"`
	Phone      string `json:"phone" validate:"required,notblank,max=30"`
	Email      string `json:"email" validate:"omitempty,email"`
	CheckIn    string `json:"check_in" validate:"required"`
	CheckOut   string `json:"check_out" validate:"required"`
	GuestCount int    `json:"guest_count" validate:"gte=1"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// Payment is the payment form.  Tendered applies to cash only; Reference
// to the other methods only.
type Payment struct {
	Method    model.PaymentMethod `json:"method" validate:"required,oneof=cash card transfer"`
	Tendered  int64               `json:"tendered"`
	Reference string              `json:"reference" validate:"max=120"`
}

// Settlement is the captured payment.  Change is recorded, never charged.
type Settlement struct {
	Method    model.PaymentMethod `json:"method"`
	Paid      int64               `json:"paid"`
	Tendered  int64               `json:"tendered,omitempty"`
	Change    int64               `json:"change"`
	Reference string              `json:"reference,omitempty"`
}

// Draft is one walk-in booking in progress.  It is serialised as JSON by
// the draft stores.
type Draft struct {
	ID      string `json:"id"`
	OwnerID uint64 `json:"owner_id"`
	Step    Step   `json:"step"`

	Room     *model.Room    `json:"room,omitempty"`
	Guest    *Guest         `json:"guest,omitempty"`
	CheckIn  time.Time      `json:"check_in,omitempty"`
	CheckOut time.Time      `json:"check_out,omitempty"`
	Quote    *pricing.Quote `json:"quote,omitempty"`
	Payment  *Settlement    `json:"payment,omitempty"`

	// Reservation is the record as persisted; set once Step is StepReceipt.
	Reservation  *model.Reservation `json:"reservation,omitempty"`
	RoomOccupied bool               `json:"room_occupied,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
