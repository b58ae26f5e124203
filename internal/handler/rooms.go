package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/inventory"
	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
)

// RoomHandler serves the back-office room inventory.  Each request works
// on its own inventory.Rooms so notices never leak between callers.  Purge,
// if set, drops cached public responses after a write.
type RoomHandler struct {
	Store   inventory.RoomStore
	Catalog *inventory.Catalog
	Purge   func(ctx context.Context) error
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

func NewRoomHandler(store inventory.RoomStore, catalog *inventory.Catalog, purge func(context.Context) error, m *metrics.Metrics, log *slog.Logger) *RoomHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RoomHandler{Store: store, Catalog: catalog, Purge: purge, Metrics: m, Log: log}
}

func (h *RoomHandler) rooms() (*inventory.Rooms, *notice.Recorder) {
	rec := &notice.Recorder{}
	return inventory.New(h.Store, h.Catalog, rec, h.Log), rec
}

func (h *RoomHandler) written(c echo.Context, op string, err error) {
	h.Metrics.RoomWrite(op, err)
	if err != nil || h.Purge == nil {
		return
	}
	if perr := h.Purge(c.Request().Context()); perr != nil {
		h.Log.Warn("purging room cache failed", "op", op, "err", perr)
	}
}

func roomWriteStatus(err error) int {
	switch {
	case errors.Is(err, inventory.ErrNotConfirmed):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrRoomNumberExists), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// List returns every room ordered by room number.
func (h *RoomHandler) List(c echo.Context) error {
	rooms, rec := h.rooms()
	items, err := rooms.List(c.Request().Context())
	if err != nil {
		return failure(c, http.StatusInternalServerError, rec)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": items, "available": len(rooms.Available())})
}

// Create adds a room.
func (h *RoomHandler) Create(c echo.Context) error {
	var in inventory.NewRoom
	if ok, err := bindValid(c, &in); !ok {
		return err
	}
	rooms, rec := h.rooms()
	room, err := rooms.Create(c.Request().Context(), in.Fields())
	h.written(c, "create", err)
	if err != nil {
		return failure(c, roomWriteStatus(err), rec)
	}
	return c.JSON(http.StatusCreated, withNotice(echo.Map{"room": room}, rec))
}

// Update applies a partial change to a room.
func (h *RoomHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	var in inventory.RoomPatch
	if ok, err := bindValid(c, &in); !ok {
		return err
	}
	rooms, rec := h.rooms()
	room, err := rooms.Update(c.Request().Context(), id, in.Fields())
	h.written(c, "update", err)
	if err != nil {
		return failure(c, roomWriteStatus(err), rec)
	}
	return c.JSON(http.StatusOK, withNotice(echo.Map{"room": room}, rec))
}

// Delete removes a room; the request must carry ?confirm=true.
func (h *RoomHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	confirmed, _ := strconv.ParseBool(c.QueryParam("confirm"))
	rooms, rec := h.rooms()
	err := rooms.Delete(c.Request().Context(), id, confirmed)
	if !errors.Is(err, inventory.ErrNotConfirmed) {
		h.written(c, "delete", err)
	}
	if err != nil {
		return failure(c, roomWriteStatus(err), rec)
	}
	return c.JSON(http.StatusOK, withNotice(echo.Map{"rooms": rooms.Items()}, rec))
}

// PublicRooms serves the guest-facing catalog snapshot.
type PublicRooms struct {
	Catalog *inventory.Catalog
}

func NewPublicRooms(catalog *inventory.Catalog) *PublicRooms {
	return &PublicRooms{Catalog: catalog}
}

// List returns bookable rooms.  ?guests=N keeps rooms holding at least N
// guests.
func (p *PublicRooms) List(c echo.Context) error {
	rooms, err := p.Catalog.Load(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rooms unavailable"})
	}
	guests := 0
	if g := c.QueryParam("guests"); g != "" {
		n, err := strconv.Atoi(g)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "guests must be a positive number"})
		}
		guests = n
	}
	out := []model.Room{}
	for _, r := range rooms {
		if r.Status == model.RoomMaintenance || r.Capacity < guests {
			continue
		}
		out = append(out, r)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}

// Get returns one catalog room.
func (p *PublicRooms) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	room, err := p.Catalog.Find(c.Request().Context(), id)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rooms unavailable"})
	}
	return c.JSON(http.StatusOK, room)
}
