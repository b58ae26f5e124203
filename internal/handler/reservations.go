package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/reservation"
)

// ReservationHandler serves the back-office reservation list.
type ReservationHandler struct {
	Store     reservation.Store
	Rooms     reservation.RoomDirectory
	Publisher Publisher
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	Now       func() time.Time
}

func NewReservationHandler(store reservation.Store, rooms reservation.RoomDirectory, p Publisher, m *metrics.Metrics, log *slog.Logger) *ReservationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReservationHandler{Store: store, Rooms: rooms, Publisher: p, Metrics: m, Log: log, Now: time.Now}
}

func (h *ReservationHandler) reservations() (*reservation.Reservations, *notice.Recorder) {
	rec := &notice.Recorder{}
	return reservation.New(h.Store, h.Rooms, rec, h.Log), rec
}

func reservationWriteStatus(err error) int {
	var fe notice.FieldErrors
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrRoomNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reservation.ErrCapacityExceeded), errors.Is(err, reservation.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// List returns the reservations matching ?room_id=, ?status= and ?q=,
// ordered by ?sort= (created, total or guest), with their stats.
func (h *ReservationHandler) List(c echo.Context) error {
	var f reservation.Filter
	if v := c.QueryParam("room_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room_id"})
		}
		f.RoomID = id
	}
	if v := c.QueryParam("status"); v != "" {
		st, err := model.ParseReservationStatus(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		f.Status = st
	}
	f.Query = c.QueryParam("q")

	res, rec := h.reservations()
	if _, err := res.List(c.Request().Context()); err != nil {
		return failure(c, http.StatusInternalServerError, rec)
	}
	items, stats := res.View(f, reservation.ParseSortKey(c.QueryParam("sort")))
	return c.JSON(http.StatusOK, echo.Map{"reservations": items, "stats": stats})
}

// Create stores a staff-entered reservation.  The total is priced by the
// server.
func (h *ReservationHandler) Create(c echo.Context) error {
	var in reservation.NewReservation
	if ok, err := bindValid(c, &in); !ok {
		return err
	}
	r, err := in.Reservation()
	if err != nil {
		return fieldErrors(c, err)
	}
	res, rec := h.reservations()
	saved, err := res.Create(c.Request().Context(), r)
	if err != nil {
		return failure(c, reservationWriteStatus(err), rec)
	}
	h.Metrics.ReservationCreated(queue.ChannelAdmin)
	if saved.Status == model.ReservationConfirmed {
		h.confirmed(c, *saved)
	}
	return c.JSON(http.StatusCreated, withNotice(echo.Map{"reservation": saved}, rec))
}

// Update applies a partial change.  Status changes follow the allowed
// transitions; completing a stay frees its room.
func (h *ReservationHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var in reservation.Patch
	if ok, err := bindValid(c, &in); !ok {
		return err
	}
	ctx := c.Request().Context()
	confirming := false
	if in.Status != nil && *in.Status == model.ReservationConfirmed {
		if prev, err := h.Store.GetByID(ctx, id); err == nil {
			confirming = prev.Status != model.ReservationConfirmed
		}
	}
	res, rec := h.reservations()
	saved, err := res.Update(ctx, id, in.Fields())
	if err != nil {
		return failure(c, reservationWriteStatus(err), rec)
	}
	if confirming {
		h.confirmed(c, *saved)
	}
	return c.JSON(http.StatusOK, withNotice(echo.Map{"reservation": saved}, rec))
}

func (h *ReservationHandler) confirmed(c echo.Context, r model.Reservation) {
	staff, _ := staffID(c)
	publish(c, h.Publisher, h.Log, queue.FromReservation(r, queue.ChannelAdmin, staff, h.Now()))
}
