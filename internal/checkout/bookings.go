package checkout

import (
	"context"
	"errors"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/scratch"
)

// ErrBookingNotFound is returned for unknown transaction ids.
var ErrBookingNotFound = errors.New("booking not found")

// Bookings is where finished checkouts are recorded.
type Bookings interface {
	Add(ctx context.Context, b model.Booking) error
	Get(ctx context.Context, transactionID string) (model.Booking, error)
}

// ScratchBookings keeps bookings as one JSON collection in the scratch
// store.  Backed by scratch.MemoryStore it doubles as the test repository.
type ScratchBookings struct {
	store scratch.Store
}

func NewScratchBookings(store scratch.Store) *ScratchBookings {
	return &ScratchBookings{store: store}
}

func (s *ScratchBookings) Add(ctx context.Context, b model.Booking) error {
	return scratch.Append(ctx, s.store, scratch.Bookings, b)
}

func (s *ScratchBookings) Get(ctx context.Context, id string) (model.Booking, error) {
	all, err := scratch.Load[model.Booking](ctx, s.store, scratch.Bookings)
	if err != nil {
		return model.Booking{}, err
	}
	for _, b := range all {
		if b.TransactionID == id {
			return b, nil
		}
	}
	return model.Booking{}, ErrBookingNotFound
}

// List returns every booking in the order they were made.
func (s *ScratchBookings) List(ctx context.Context) ([]model.Booking, error) {
	return scratch.Load[model.Booking](ctx, s.store, scratch.Bookings)
}
