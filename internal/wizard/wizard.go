// Package wizard drives the staff walk-in booking: room selection, guest
// data, payment, confirmation and receipt, in that order.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/validation"
)

var (
	ErrWrongStep       = errors.New("operation not allowed at this step")
	ErrRoomUnavailable = errors.New("room is not available")
	ErrSubmitted       = errors.New("reservation already submitted")
)

// StepError reports an operation attempted at the wrong step.
type StepError struct {
	Op   string
	Want Step
	Have Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: expected step %s, draft is at %s", e.Op, e.Want, e.Have)
}

func (e *StepError) Unwrap() error { return ErrWrongStep }

// RoomSource reads rooms; *repository.RoomRepo satisfies it.
type RoomSource interface {
	List(ctx context.Context) ([]model.Room, error)
	GetByID(ctx context.Context, id uint64) (model.Room, error)
}

// Persister stores the finished booking; *reservation.Reservations
// satisfies it.
type Persister interface {
	Create(ctx context.Context, r model.Reservation) (*model.Reservation, error)
	Occupy(ctx context.Context, r model.Reservation, now time.Time) bool
}

// Wizard holds the collaborators of the flow.  Drafts carry all state, so
// one Wizard can serve any number of drafts.
type Wizard struct {
	rooms     RoomSource
	persist   Persister
	validator *validation.Validator
	now       func() time.Time
}

// New returns a Wizard.  now defaults to time.Now.
func New(rooms RoomSource, persist Persister, v *validation.Validator, now func() time.Time) *Wizard {
	if v == nil {
		v = validation.New()
	}
	if now == nil {
		now = time.Now
	}
	return &Wizard{rooms: rooms, persist: persist, validator: v, now: now}
}

// Start opens a draft at room selection.
func (w *Wizard) Start(ownerID uint64) *Draft {
	t := w.now().UTC()
	return &Draft{ID: uuid.NewString(), OwnerID: ownerID, Step: StepRoomSelection, CreatedAt: t, UpdatedAt: t}
}

// AvailableRooms lists the rooms that can be selected.
func (w *Wizard) AvailableRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := w.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.Room{}
	for _, r := range rooms {
		if r.Status == model.RoomAvailable {
			out = append(out, r)
		}
	}
	return out, nil
}

// SelectRoom fixes the room of the booking and advances to guest data.
func (w *Wizard) SelectRoom(ctx context.Context, d *Draft, roomID uint64) error {
	if err := expect(d, "select room", StepRoomSelection); err != nil {
		return err
	}
	room, err := w.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return fmt.Errorf("%w: room %d does not exist", ErrRoomUnavailable, roomID)
	}
	if err != nil {
		return err
	}
	if room.Status != model.RoomAvailable {
		return fmt.Errorf("%w: room %s is %s", ErrRoomUnavailable, room.RoomNumber, room.Status)
	}
	if d.Room == nil || d.Room.ID != room.ID {
		d.Quote, d.Payment = nil, nil
	}
	d.Room = &room
	w.advance(d, StepGuestData)
	return nil
}

// SubmitGuest validates the guest form and prices the stay.  Every failed
// field is reported; the draft does not advance on any failure.
func (w *Wizard) SubmitGuest(d *Draft, g Guest) error {
	if err := expect(d, "submit guest data", StepGuestData); err != nil {
		return err
	}
	var errs notice.FieldErrors
	if err := w.validator.Struct(g); err != nil {
		var fe notice.FieldErrors
		if !errors.As(err, &fe) {
			return err
		}
		errs = fe
	}

	today := pricing.DateOf(w.now())
	in, inErr := pricing.ParseDate(strings.TrimSpace(g.CheckIn))
	out, outErr := pricing.ParseDate(strings.TrimSpace(g.CheckOut))
	if g.CheckIn != "" && inErr != nil {
		errs.Add("check_in", "must be a date (YYYY-MM-DD)")
	}
	if g.CheckOut != "" && outErr != nil {
		errs.Add("check_out", "must be a date (YYYY-MM-DD)")
	}
	var quote pricing.Quote
	if inErr == nil && outErr == nil {
		if in.Before(today) {
			errs.Add("check_in", "check-in cannot be before today")
		}
		q, err := pricing.QuoteStay(d.Room.Price, in, out)
		switch {
		case errors.Is(err, pricing.ErrInvalidStay):
			errs.Add("check_out", "check-out must be after check-in")
		case err != nil:
			errs.Add("room", "the selected room has no valid rate")
		default:
			quote = q
		}
	}
	if g.GuestCount > d.Room.Capacity {
		errs.Add("guest_count", fmt.Sprintf("capacity exceeded: room %s holds at most %d guests", d.Room.RoomNumber, d.Room.Capacity))
	}
	if err := errs.Err(); err != nil {
		return err
	}

	g.Name, g.Document, g.Phone, g.Email = strings.TrimSpace(g.Name), strings.TrimSpace(g.Document), strings.TrimSpace(g.Phone), strings.TrimSpace(g.Email)
	if d.Quote == nil || *d.Quote != quote {
		d.Payment = nil
	}
	d.Guest, d.CheckIn, d.CheckOut, d.Quote = &g, in, out, &quote
	w.advance(d, StepPayment)
	return nil
}

// SubmitPayment captures the payment.  Cash must cover the total and the
// change is recorded; other methods are paid in full with an optional
// reference.
func (w *Wizard) SubmitPayment(d *Draft, p Payment) error {
	if err := expect(d, "submit payment", StepPayment); err != nil {
		return err
	}
	if err := w.validator.Struct(p); err != nil {
		return err
	}
	total := d.Quote.Total
	s := Settlement{Method: p.Method}
	switch p.Method {
	case model.PaymentCash:
		change, err := pricing.Change(total, p.Tendered)
		if err != nil {
			var errs notice.FieldErrors
			errs.Add("tendered", fmt.Sprintf("insufficient amount: %d tendered, %d due", p.Tendered, total))
			return errs
		}
		s.Paid, s.Tendered, s.Change = total, p.Tendered, change
	case model.PaymentCard, model.PaymentTransfer:
		s.Paid, s.Reference = total, strings.TrimSpace(p.Reference)
	}
	d.Payment = &s
	w.advance(d, StepConfirmation)
	return nil
}

// Submit persists the booking as confirmed and moves to the receipt.  The
// room is read again first and must still be available.  On failure the
// draft stays at confirmation so staff can retry or go back.
func (w *Wizard) Submit(ctx context.Context, d *Draft) error {
	if d.Step == StepReceipt {
		return ErrSubmitted
	}
	if err := expect(d, "submit", StepConfirmation); err != nil {
		return err
	}
	if err := w.stillAvailable(ctx, d.Room.ID); err != nil {
		return err
	}
	g := d.Guest
	res := model.Reservation{
		RoomID:        d.Room.ID,
		GuestName:     g.Name,
		GuestDocument: g.Document,
		GuestPhone:    g.Phone,
		CheckIn:       d.CheckIn,
		CheckOut:      d.CheckOut,
		GuestCount:    g.GuestCount,
		TotalPrice:    d.Quote.Total,
		Status:        model.ReservationConfirmed,
		PaymentMethod: string(d.Payment.Method),
		Notes:         notes(g.Notes, d.Payment),
	}
	if g.Email != "" {
		email := g.Email
		res.GuestEmail = &email
	}
	saved, err := w.persist.Create(ctx, res)
	if err != nil {
		return err
	}
	d.Reservation = saved
	d.RoomOccupied = w.persist.Occupy(ctx, *saved, w.now())
	w.advance(d, StepReceipt)
	return nil
}

// Back returns to the previous step.  The first step and the receipt have
// no way back; a persisted booking is never undone.
func (w *Wizard) Back(d *Draft) error {
	switch d.Step {
	case StepRoomSelection:
		return &StepError{Op: "back", Want: StepGuestData, Have: d.Step}
	case StepReceipt:
		return ErrSubmitted
	}
	w.advance(d, d.Step-1)
	return nil
}

// Persisted returns the stored reservation backing the receipt.
func (d *Draft) Persisted() (*model.Reservation, error) {
	if d.Step != StepReceipt || d.Reservation == nil {
		return nil, &StepError{Op: "receipt", Want: StepReceipt, Have: d.Step}
	}
	return d.Reservation, nil
}

func (w *Wizard) stillAvailable(ctx context.Context, roomID uint64) error {
	room, err := w.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return fmt.Errorf("%w: room %d no longer exists", ErrRoomUnavailable, roomID)
	}
	if err != nil {
		return err
	}
	if room.Status != model.RoomAvailable {
		return fmt.Errorf("%w: room %s is now %s", ErrRoomUnavailable, room.RoomNumber, room.Status)
	}
	return nil
}

func (w *Wizard) advance(d *Draft, to Step) {
	d.Step = to
	d.UpdatedAt = w.now().UTC()
}

func expect(d *Draft, op string, want Step) error {
	if d.Step != want {
		return &StepError{Op: op, Want: want, Have: d.Step}
	}
	return nil
}

// notes appends the payment details to the staff notes.
func notes(staff string, p *Settlement) string {
	var parts []string
	if s := strings.TrimSpace(staff); s != "" {
		parts = append(parts, s)
	}
	switch p.Method {
	case model.PaymentCash:
		parts = append(parts, fmt.Sprintf("cash tendered %d, change %d", p.Tendered, p.Change))
	default:
		if p.Reference != "" {
			parts = append(parts, "payment reference "+p.Reference)
		}
	}
	return strings.Join(parts, "\n")
}
