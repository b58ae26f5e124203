package inventory

import (
	"context"
	"log/slog"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/scratch"
)

// Catalog is the public snapshot of the room list kept in the scratch store.
// The public site and the checkout read rooms from here, never from MySQL.
type Catalog struct {
	store scratch.Store
}

func NewCatalog(store scratch.Store) *Catalog { return &Catalog{store: store} }

// Publish replaces the snapshot with rooms.
func (c *Catalog) Publish(ctx context.Context, rooms []model.Room) error {
	return scratch.Replace(ctx, c.store, scratch.Rooms, rooms)
}

// Load returns the snapshot; an unpublished catalog is empty.
func (c *Catalog) Load(ctx context.Context) ([]model.Room, error) {
	return scratch.Load[model.Room](ctx, c.store, scratch.Rooms)
}

// Find returns one room of the snapshot or repository.ErrRoomNotFound.
func (c *Catalog) Find(ctx context.Context, id uint64) (model.Room, error) {
	rooms, err := c.Load(ctx)
	if err != nil {
		return model.Room{}, err
	}
	for _, r := range rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Room{}, repository.ErrRoomNotFound
}

// Sync publishes the current contents of store.  Used at startup.
func (c *Catalog) Sync(ctx context.Context, store RoomStore) (int, error) {
	rooms, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.Publish(ctx, rooms); err != nil {
		return 0, err
	}
	return len(rooms), nil
}

// Publishing wraps a RoomStore so status changes made outside Rooms, such
// as a walk-in occupying a room, still reach the catalog.
type Publishing struct {
	RoomStore
	Catalog *Catalog
	Log     *slog.Logger
}

// SetStatus writes the status and republishes the catalog.  A failed
// republish is logged; the write stands.
func (p Publishing) SetStatus(ctx context.Context, id uint64, status model.RoomStatus) error {
	if err := p.RoomStore.SetStatus(ctx, id, status); err != nil {
		return err
	}
	if p.Catalog == nil {
		return nil
	}
	if _, err := p.Catalog.Sync(ctx, p.RoomStore); err != nil && p.Log != nil {
		p.Log.Warn("publishing room catalog failed", "room_id", id, "err", err)
	}
	return nil
}
