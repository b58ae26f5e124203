package reservation

import (
	"strings"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
)

// NewReservation is the staff form for a reservation entered outside the
// walk-in wizard.
type NewReservation struct {
	RoomID        uint64                  `json:"room_id" validate:"required"`
	GuestName     string                  `json:"guest_name" validate:"required,notblank,max=120"`
	GuestDocument string                  `json:"guest_document" validate:"required,notblank,max=40"`
	GuestPhone    string                  `json:"guest_phone" validate:"required,notblank,max=30"`
	GuestEmail    *string                 `json:"guest_email" validate:"omitnil,omitempty,email"`
	CheckIn       string                  `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut      string                  `json:"check_out" validate:"required,datetime=2006-01-02"`
	GuestCount    int                     `json:"guest_count" validate:"gte=1"`
	Status        model.ReservationStatus `json:"status" validate:"omitempty,oneof=pending confirmed"`
	PaymentMethod model.PaymentMethod     `json:"payment_method" validate:"omitempty,oneof=cash card transfer"`
	Notes         string                  `json:"notes" validate:"max=1000"`
}

// Reservation converts a validated form.  Status defaults to pending.
func (n NewReservation) Reservation() (model.Reservation, error) {
	var errs notice.FieldErrors
	in, err := pricing.ParseDate(n.CheckIn)
	if err != nil {
		errs.Add("check_in", "must be a date (YYYY-MM-DD)")
	}
	out, err := pricing.ParseDate(n.CheckOut)
	if err != nil {
		errs.Add("check_out", "must be a date (YYYY-MM-DD)")
	}
	if err := errs.Err(); err != nil {
		return model.Reservation{}, err
	}
	status := n.Status
	if status == "" {
		status = model.ReservationPending
	}
	var email *string
	if n.GuestEmail != nil && strings.TrimSpace(*n.GuestEmail) != "" {
		e := strings.TrimSpace(*n.GuestEmail)
		email = &e
	}
	return model.Reservation{
		RoomID:        n.RoomID,
		GuestName:     strings.TrimSpace(n.GuestName),
		GuestDocument: strings.TrimSpace(n.GuestDocument),
		GuestPhone:    strings.TrimSpace(n.GuestPhone),
		GuestEmail:    email,
		CheckIn:       in,
		CheckOut:      out,
		GuestCount:    n.GuestCount,
		Status:        status,
		PaymentMethod: string(n.PaymentMethod),
		Notes:         n.Notes,
	}, nil
}

// Patch is the partial update form.
type Patch struct {
	GuestName     *string                  `json:"guest_name" validate:"omitnil,notblank,max=120"`
	GuestDocument *string                  `json:"guest_document" validate:"omitnil,notblank,max=40"`
	GuestPhone    *string                  `json:"guest_phone" validate:"omitnil,notblank,max=30"`
	GuestEmail    *string                  `json:"guest_email" validate:"omitnil,omitempty,email"`
	Status        *model.ReservationStatus `json:"status" validate:"omitnil,oneof=pending confirmed completed cancelled"`
	PaymentMethod *model.PaymentMethod     `json:"payment_method" validate:"omitnil,oneof=cash card transfer"`
	Notes         *string                  `json:"notes" validate:"omitnil,max=1000"`
}

func (p Patch) Fields() model.ReservationPatch {
	out := model.ReservationPatch{
		GuestName:     p.GuestName,
		GuestDocument: p.GuestDocument,
		GuestPhone:    p.GuestPhone,
		GuestEmail:    p.GuestEmail,
		Status:        p.Status,
		Notes:         p.Notes,
	}
	if p.PaymentMethod != nil {
		m := string(*p.PaymentMethod)
		out.PaymentMethod = &m
	}
	return out
}
