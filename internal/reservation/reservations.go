// Package reservation is the back-office access layer for reservations:
// listing with room display fields, filtering, sorting, statistics and
// staff-driven status changes.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
)

var (
	ErrCapacityExceeded  = errors.New("guest count exceeds room capacity")
	ErrInvalidTransition = errors.New("status change not allowed")
)

// Store is the reservation persistence; *repository.ReservationRepo
// satisfies it.
type Store interface {
	List(ctx context.Context) ([]model.Reservation, error)
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	Create(ctx context.Context, r model.Reservation) (uint64, error)
	Update(ctx context.Context, id uint64, p model.ReservationPatch) error
}

// RoomDirectory gives access to the rooms reservations point at.
type RoomDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.Room, error)
	SetStatus(ctx context.Context, id uint64, status model.RoomStatus) error
}

// Reservations is the reservation list of one caller.  Like the room
// inventory, writes reload the list and failures are reported to the
// notifier and returned as nil results.
type Reservations struct {
	store  Store
	rooms  RoomDirectory
	notify notice.Notifier
	log    *slog.Logger

	items []model.Reservation
}

func New(store Store, rooms RoomDirectory, n notice.Notifier, log *slog.Logger) *Reservations {
	if n == nil {
		n = notice.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reservations{store: store, rooms: rooms, notify: n, log: log}
}

// Items returns the list as of the last successful load, newest first.
func (r *Reservations) Items() []model.Reservation {
	return append([]model.Reservation(nil), r.items...)
}

// List loads all reservations with their room number and name.
func (r *Reservations) List(ctx context.Context) ([]model.Reservation, error) {
	items, err := r.store.List(ctx)
	if err != nil {
		r.fail("Could not load reservations.", err)
		return nil, err
	}
	r.items = items
	return r.Items(), nil
}

// View filters and sorts the loaded list and summarises the result.
func (r *Reservations) View(f Filter, key SortKey) ([]model.Reservation, Stats) {
	matched := Apply(r.items, f)
	return Sort(matched, key), Compute(matched)
}

// Create prices and stores a reservation and returns it as persisted.
// The total is always nights × the room's current rate; a caller-supplied
// total is ignored.
func (r *Reservations) Create(ctx context.Context, in model.Reservation) (*model.Reservation, error) {
	room, err := r.rooms.GetByID(ctx, in.RoomID)
	if err != nil {
		r.fail(createMessage(err), err)
		return nil, err
	}
	if in.GuestCount > room.Capacity {
		err := fmt.Errorf("%w: %d guests, room %s holds %d", ErrCapacityExceeded, in.GuestCount, room.RoomNumber, room.Capacity)
		r.fail(createMessage(err), err)
		return nil, err
	}
	q, err := pricing.QuoteStay(room.Price, in.CheckIn, in.CheckOut)
	if err != nil {
		r.fail(createMessage(err), err)
		return nil, err
	}
	in.TotalPrice = q.Total
	if !in.Status.Valid() {
		in.Status = model.ReservationPending
	}
	id, err := r.store.Create(ctx, in)
	if err != nil {
		r.fail(createMessage(err), err)
		return nil, err
	}
	saved, err := r.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	r.notify.Notify(notice.Notice{Level: notice.Success, Message: fmt.Sprintf("Reservation #%d saved.", saved.ID)})
	return saved, nil
}

// Update applies a partial change.  A status change must be allowed by
// ReservationStatus.CanTransition; completing a reservation frees its
// room.
func (r *Reservations) Update(ctx context.Context, id uint64, p model.ReservationPatch) (*model.Reservation, error) {
	var current model.Reservation
	if p.Status != nil {
		var err error
		current, err = r.store.GetByID(ctx, id)
		if err != nil {
			r.fail(updateMessage(err), err)
			return nil, err
		}
		if !current.Status.CanTransition(*p.Status) {
			err := fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, *p.Status)
			r.fail(updateMessage(err), err)
			return nil, err
		}
	}
	if err := r.store.Update(ctx, id, p); err != nil {
		r.fail(updateMessage(err), err)
		return nil, err
	}
	if p.Status != nil && *p.Status == model.ReservationCompleted && current.Status != model.ReservationCompleted {
		r.release(ctx, current.RoomID)
	}
	saved, err := r.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	r.notify.Notify(notice.Notice{Level: notice.Success, Message: fmt.Sprintf("Reservation #%d updated.", saved.ID)})
	return saved, nil
}

// Occupy marks the room of a stay that starts on today's date as occupied.
// It reports whether the room changed.
func (r *Reservations) Occupy(ctx context.Context, res model.Reservation, now time.Time) bool {
	if !pricing.DateOf(res.CheckIn).Equal(pricing.DateOf(now)) {
		return false
	}
	if err := r.rooms.SetStatus(ctx, res.RoomID, model.RoomOccupied); err != nil {
		r.log.Warn("marking room occupied failed", "room_id", res.RoomID, "reservation_id", res.ID, "err", err)
		r.notify.Notify(notice.Notice{Level: notice.Error, Message: "Reservation saved, but the room could not be marked occupied."})
		return false
	}
	return true
}

func (r *Reservations) release(ctx context.Context, roomID uint64) {
	room, err := r.rooms.GetByID(ctx, roomID)
	if err != nil || room.Status != model.RoomOccupied {
		return
	}
	if err := r.rooms.SetStatus(ctx, roomID, model.RoomAvailable); err != nil {
		r.log.Warn("releasing room failed", "room_id", roomID, "err", err)
		r.notify.Notify(notice.Notice{Level: notice.Error, Message: "Reservation completed, but the room is still marked occupied."})
	}
}

// reload refetches the list and returns reservation id from it.
func (r *Reservations) reload(ctx context.Context, id uint64) (*model.Reservation, error) {
	items, err := r.store.List(ctx)
	if err != nil {
		r.fail("Saved, but the reservation list could not be reloaded.", err)
		return nil, err
	}
	r.items = items
	for i := range items {
		if items[i].ID == id {
			res := items[i]
			return &res, nil
		}
	}
	r.fail("Saved, but the reservation is missing from the reloaded list.", repository.ErrReservationNotFound)
	return nil, repository.ErrReservationNotFound
}

func (r *Reservations) fail(msg string, err error) {
	r.log.Warn("reservation operation failed", "message", msg, "err", err)
	r.notify.Notify(notice.Notice{Level: notice.Error, Message: msg})
}

func createMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return "The selected room does not exist."
	case errors.Is(err, ErrCapacityExceeded):
		return "Guest count exceeds the room capacity."
	case errors.Is(err, pricing.ErrInvalidStay):
		return "Check-out must be after check-in."
	case errors.Is(err, pricing.ErrInvalidRate):
		return "The selected room has no valid rate."
	}
	return "Could not save the reservation."
}

func updateMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrReservationNotFound):
		return "Reservation not found."
	case errors.Is(err, ErrInvalidTransition):
		return "That status change is not allowed."
	}
	return "Could not update the reservation."
}
