// Package inventory manages the room list for the back office.  Every
// successful write reloads the full list from the store, so the list a
// caller sees always has the store's ordering and server-set fields.
package inventory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
)

// ErrNotConfirmed is returned by Delete when staff did not confirm.
var ErrNotConfirmed = errors.New("room deletion requires confirmation")

// RoomStore is the persistence Rooms works against; *repository.RoomRepo
// satisfies it.
type RoomStore interface {
	List(ctx context.Context) ([]model.Room, error)
	GetByID(ctx context.Context, id uint64) (model.Room, error)
	Create(ctx context.Context, f model.RoomFields) (uint64, error)
	Update(ctx context.Context, id uint64, f model.RoomFields) error
	SetStatus(ctx context.Context, id uint64, status model.RoomStatus) error
	Delete(ctx context.Context, id uint64) error
}

// Rooms is the room list of one caller.  Failures are reported to the
// notifier and returned as a nil result with a non-nil error; nothing
// panics past this boundary.
type Rooms struct {
	store   RoomStore
	catalog *Catalog
	notify  notice.Notifier
	log     *slog.Logger

	items []model.Room
}

// New returns a Rooms with an empty list.  catalog may be nil.
func New(store RoomStore, catalog *Catalog, n notice.Notifier, log *slog.Logger) *Rooms {
	if n == nil {
		n = notice.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &Rooms{store: store, catalog: catalog, notify: n, log: log}
}

// Items returns the list as of the last successful load.
func (r *Rooms) Items() []model.Room {
	return append([]model.Room(nil), r.items...)
}

// Available returns the loaded rooms a guest can be placed in.
func (r *Rooms) Available() []model.Room {
	out := []model.Room{}
	for _, room := range r.items {
		if room.Status == model.RoomAvailable {
			out = append(out, room)
		}
	}
	return out
}

// List loads all rooms ordered by room number.
func (r *Rooms) List(ctx context.Context) ([]model.Room, error) {
	rooms, err := r.store.List(ctx)
	if err != nil {
		r.fail("Could not load rooms.", err)
		return nil, err
	}
	r.items = rooms
	return r.Items(), nil
}

// Create inserts a room and returns it as stored.
func (r *Rooms) Create(ctx context.Context, f model.RoomFields) (*model.Room, error) {
	id, err := r.store.Create(ctx, f)
	if err != nil {
		r.fail(writeMessage("create", err), err)
		return nil, err
	}
	room, err := r.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	r.notify.Notify(notice.Notice{Level: notice.Success, Message: "Room " + room.RoomNumber + " created."})
	return room, nil
}

// Update applies a partial change and returns the room as stored.
func (r *Rooms) Update(ctx context.Context, id uint64, f model.RoomFields) (*model.Room, error) {
	if err := r.store.Update(ctx, id, f); err != nil {
		r.fail(writeMessage("update", err), err)
		return nil, err
	}
	room, err := r.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	r.notify.Notify(notice.Notice{Level: notice.Success, Message: "Room " + room.RoomNumber + " updated."})
	return room, nil
}

// SetStatus changes the occupancy status of a room.
func (r *Rooms) SetStatus(ctx context.Context, id uint64, status model.RoomStatus) (*model.Room, error) {
	if err := r.store.SetStatus(ctx, id, status); err != nil {
		r.fail(writeMessage("update", err), err)
		return nil, err
	}
	return r.reload(ctx, id)
}

// Delete removes a room.  confirmed must be true.
func (r *Rooms) Delete(ctx context.Context, id uint64, confirmed bool) error {
	if !confirmed {
		r.notify.Notify(notice.Notice{Level: notice.Error, Message: "Confirm the deletion to remove the room."})
		return ErrNotConfirmed
	}
	if err := r.store.Delete(ctx, id); err != nil {
		r.fail(writeMessage("delete", err), err)
		return err
	}
	if _, err := r.reload(ctx, 0); err != nil {
		return err
	}
	r.notify.Notify(notice.Notice{Level: notice.Success, Message: "Room deleted."})
	return nil
}

// reload refetches the list after a write and returns room id from it.  A
// failed refetch fails the operation even though the write went through.
// id 0 skips the lookup.
func (r *Rooms) reload(ctx context.Context, id uint64) (*model.Room, error) {
	rooms, err := r.store.List(ctx)
	if err != nil {
		r.fail("Saved, but the room list could not be reloaded.", err)
		return nil, err
	}
	r.items = rooms
	r.publish(ctx)
	if id == 0 {
		return nil, nil
	}
	for i := range rooms {
		if rooms[i].ID == id {
			room := rooms[i]
			return &room, nil
		}
	}
	r.fail("Saved, but the room is missing from the reloaded list.", repository.ErrRoomNotFound)
	return nil, repository.ErrRoomNotFound
}

func (r *Rooms) publish(ctx context.Context) {
	if r.catalog == nil {
		return
	}
	if err := r.catalog.Publish(ctx, r.items); err != nil {
		r.log.Warn("publishing room catalog failed", "err", err)
	}
}

func (r *Rooms) fail(msg string, err error) {
	r.log.Warn("room operation failed", "message", msg, "err", err)
	r.notify.Notify(notice.Notice{Level: notice.Error, Message: msg})
}

func writeMessage(op string, err error) string {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, repository.ErrRoomNumberExists):
		return "Another room already uses that room number."
	case errors.Is(err, repository.ErrConflict):
		return "The room still has reservations and cannot be deleted."
	}
	return "Could not " + op + " the room."
}
