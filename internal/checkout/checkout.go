// Package checkout is the public self-service booking: one form validated
// as a whole, a simulated card payment and a booking record keyed by a
// transaction id.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/validation"
)

// Form is the checkout page.  Card data never leaves this package except
// as the last four digits.
type Form struct {
	RoomID     uint64 `json:"room_id" validate:"required"`
	GuestName  string `json:"guest_name" validate:"required,notblank,max=120"`
	GuestEmail string `json:"guest_email" validate:"required,email"`
	GuestPhone string `json:"guest_phone" validate:"required,notblank,max=30"`
	GuestCount int    `json:"guest_count" validate:"gte=1"`
	CheckIn    string `json:"check_in" validate:"required"`
	CheckOut   string `json:"check_out" validate:"required"`

	CardNumber string `json:"card_number" validate:"required,credit_card"`
	CardHolder string `json:"card_holder" validate:"required,notblank,max=120"`
	CardExpiry string `json:"card_expiry" validate:"required"` // MM/YY
	CVV        string `json:"cvv" validate:"required,number,min=3,max=4"`
}

// RoomCatalog finds rooms in the public catalog; *inventory.Catalog
// satisfies it.
type RoomCatalog interface {
	Find(ctx context.Context, id uint64) (model.Room, error)
}

// Order is a validated form, priced.
type Order struct {
	Room     model.Room
	CheckIn  time.Time
	CheckOut time.Time
	Quote    pricing.Quote
	form     Form
}

// Flow runs checkouts.
type Flow struct {
	rooms     RoomCatalog
	bookings  Bookings
	delay     time.Duration
	validator *validation.Validator
	now       func() time.Time
}

// New returns a Flow whose simulated payment takes delay.
func New(rooms RoomCatalog, bookings Bookings, delay time.Duration, v *validation.Validator, now func() time.Time) *Flow {
	if v == nil {
		v = validation.New()
	}
	if now == nil {
		now = time.Now
	}
	return &Flow{rooms: rooms, bookings: bookings, delay: delay, validator: v, now: now}
}

// Validate checks the whole form and reports every failed field at once.
func (f *Flow) Validate(ctx context.Context, form Form) (*Order, error) {
	form.CardNumber = digitsOnly(form.CardNumber)
	form.CardExpiry = strings.TrimSpace(form.CardExpiry)
	form.CVV = strings.TrimSpace(form.CVV)

	var errs notice.FieldErrors
	if err := f.validator.Struct(form); err != nil {
		if !errors.As(err, &errs) {
			return nil, err
		}
	}

	now := f.now()
	if form.CardExpiry != "" {
		if msg := checkExpiry(form.CardExpiry, now); msg != "" {
			errs.Add("card_expiry", msg)
		}
	}

	var room *model.Room
	if form.RoomID != 0 {
		r, err := f.rooms.Find(ctx, form.RoomID)
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			errs.Add("room_id", "room does not exist")
		case err != nil:
			return nil, err
		case r.Status == model.RoomMaintenance:
			errs.Add("room_id", "room is not bookable")
		default:
			room = &r
		}
	}

	order := &Order{form: form}
	in, inErr := pricing.ParseDate(strings.TrimSpace(form.CheckIn))
	out, outErr := pricing.ParseDate(strings.TrimSpace(form.CheckOut))
	if form.CheckIn != "" && inErr != nil {
		errs.Add("check_in", "must be a date (YYYY-MM-DD)")
	}
	if form.CheckOut != "" && outErr != nil {
		errs.Add("check_out", "must be a date (YYYY-MM-DD)")
	}
	if inErr == nil && outErr == nil {
		if in.Before(pricing.DateOf(now)) {
			errs.Add("check_in", "check-in cannot be before today")
		}
		if _, err := pricing.Nights(in, out); err != nil {
			errs.Add("check_out", "check-out must be after check-in")
		} else if room != nil {
			q, err := pricing.QuoteStay(room.Price, in, out)
			if err != nil {
				errs.Add("room_id", "room has no valid rate")
			}
			order.Quote = q
		}
	}
	if room != nil && form.GuestCount > room.Capacity {
		errs.Add("guest_count", fmt.Sprintf("capacity exceeded: room holds at most %d guests", room.Capacity))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	order.Room, order.CheckIn, order.CheckOut = *room, in, out
	return order, nil
}

// Checkout validates, simulates the payment and records the booking.  If
// ctx ends before the payment resolves nothing is written.  The returned
// booking is read back by its transaction id.
func (f *Flow) Checkout(ctx context.Context, form Form) (*model.Booking, error) {
	order, err := f.Validate(ctx, form)
	if err != nil {
		return nil, err
	}
	if err := f.pay(ctx); err != nil {
		return nil, err
	}

	fm := order.form
	b := model.Booking{
		TransactionID: NewTransactionID(),
		RoomID:        order.Room.ID,
		RoomName:      order.Room.Name,
		GuestName:     strings.TrimSpace(fm.GuestName),
		GuestEmail:    strings.TrimSpace(fm.GuestEmail),
		GuestPhone:    strings.TrimSpace(fm.GuestPhone),
		GuestCount:    fm.GuestCount,
		CheckIn:       order.CheckIn,
		CheckOut:      order.CheckOut,
		Nights:        order.Quote.Nights,
		NightlyRate:   order.Quote.NightlyRate,
		Total:         order.Quote.Total,
		CardLast4:     fm.CardNumber[len(fm.CardNumber)-4:],
		CardHolder:    strings.TrimSpace(fm.CardHolder),
		Status:        "confirmed",
		CreatedAt:     f.now().UTC(),
	}
	if err := f.bookings.Add(ctx, b); err != nil {
		return nil, err
	}
	saved, err := f.bookings.Get(ctx, b.TransactionID)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Confirmation returns a recorded booking.
func (f *Flow) Confirmation(ctx context.Context, transactionID string) (*model.Booking, error) {
	b, err := f.bookings.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (f *Flow) pay(ctx context.Context) error {
	if f.delay > 0 {
		t := time.NewTimer(f.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// NewTransactionID returns an id of the form TXN-<uuid>.
func NewTransactionID() string {
	return "TXN-" + strings.ToUpper(uuid.NewString())
}

// checkExpiry accepts MM/YY or MM/YYYY; a card is valid through the last
// day of its expiry month.
func checkExpiry(s string, now time.Time) string {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return "must be MM/YY"
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return "must be MM/YY"
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return "must be MM/YY"
	}
	switch len(parts[1]) {
	case 2:
		year += 2000
	case 4:
	default:
		return "must be MM/YY"
	}
	firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(firstOfNext) {
		return "card has expired"
	}
	return ""
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
