package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/middleware"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
	"github.com/iliyamo/hotel-backoffice/internal/receipt"
	"github.com/iliyamo/hotel-backoffice/internal/reservation"
	"github.com/iliyamo/hotel-backoffice/internal/validation"
	"github.com/iliyamo/hotel-backoffice/internal/wizard"
)

// WalkinHandler drives the walk-in wizard over HTTP.  Drafts live in
// Drafts between requests and belong to the staff member who started them.
type WalkinHandler struct {
	Rooms        wizard.RoomSource
	Reservations reservation.Store
	Directory    reservation.RoomDirectory
	Drafts       wizard.Store
	Validator    *validation.Validator
	Publisher    Publisher
	Metrics      *metrics.Metrics
	HotelName    string
	Log          *slog.Logger
	Now          func() time.Time
}

func (h *WalkinHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

func (h *WalkinHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// wizard builds a Wizard persisting through a fresh reservation list whose
// notices go to rec.
func (h *WalkinHandler) wizard(rec *notice.Recorder) *wizard.Wizard {
	var n notice.Notifier = notice.Discard
	if rec != nil {
		n = rec
	}
	res := reservation.New(h.Reservations, h.Directory, n, h.logger())
	return wizard.New(h.Rooms, res, h.Validator, h.now)
}

type draftResp struct {
	Draft  *wizard.Draft  `json:"draft"`
	Notice *notice.Notice `json:"notice,omitempty"`
}

func draftBody(d *wizard.Draft, rec *notice.Recorder) draftResp {
	out := draftResp{Draft: d}
	if rec != nil {
		if n, ok := rec.Last(); ok {
			out.Notice = &n
		}
	}
	return out
}

// load fetches the draft named by :id and checks its owner.  Another
// user's draft is reported as missing.
func (h *WalkinHandler) load(c echo.Context) (*wizard.Draft, error) {
	owner, err := staffID(c)
	if err != nil {
		return nil, err
	}
	d, err := h.Drafts.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if d.OwnerID != owner {
		return nil, wizard.ErrDraftNotFound
	}
	return d, nil
}

func (h *WalkinHandler) wizardError(c echo.Context, d *wizard.Draft, err error) error {
	var (
		fe notice.FieldErrors
		se *wizard.StepError
	)
	switch {
	case errors.Is(err, wizard.ErrDraftNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "walk-in not found"})
	case errors.As(err, &fe):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": fe.Map()})
	case errors.As(err, &se):
		return c.JSON(http.StatusConflict, echo.Map{"error": se.Error(), "step": se.Have.String()})
	case errors.Is(err, wizard.ErrSubmitted), errors.Is(err, wizard.ErrRoomUnavailable),
		errors.Is(err, wizard.ErrSubmitInProgress):
		body := echo.Map{"error": err.Error()}
		if d != nil {
			body["step"] = d.Step.String()
		}
		return c.JSON(http.StatusConflict, body)
	}
	h.logger().Error("walk-in step failed", "user_id", middleware.UserID(c), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "walk-in failed"})
}

// save stores d and replies with it.
func (h *WalkinHandler) save(c echo.Context, status int, d *wizard.Draft, rec *notice.Recorder) error {
	if err := h.Drafts.Save(c.Request().Context(), d); err != nil {
		return h.wizardError(c, d, err)
	}
	return c.JSON(status, draftBody(d, rec))
}

// Start opens a new draft at room selection.
func (h *WalkinHandler) Start(c echo.Context) error {
	owner, err := staffID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	d := h.wizard(nil).Start(owner)
	return h.save(c, http.StatusCreated, d, nil)
}

// AvailableRooms lists the rooms a walk-in can be placed in.
func (h *WalkinHandler) AvailableRooms(c echo.Context) error {
	rooms, err := h.wizard(nil).AvailableRooms(c.Request().Context())
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms})
}

// Get returns a draft.
func (h *WalkinHandler) Get(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	return c.JSON(http.StatusOK, draftBody(d, nil))
}

type selectRoomReq struct {
	RoomID uint64 `json:"room_id" validate:"required"`
}

// SelectRoom fixes the room and moves to guest data.
func (h *WalkinHandler) SelectRoom(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	var req selectRoomReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if err := h.wizard(nil).SelectRoom(c.Request().Context(), d, req.RoomID); err != nil {
		return h.wizardError(c, d, err)
	}
	return h.save(c, http.StatusOK, d, nil)
}

// SubmitGuest validates the guest form and prices the stay.
func (h *WalkinHandler) SubmitGuest(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	var g wizard.Guest
	if err := c.Bind(&g); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.wizard(nil).SubmitGuest(d, g); err != nil {
		return h.wizardError(c, d, err)
	}
	return h.save(c, http.StatusOK, d, nil)
}

// SubmitPayment captures the payment and moves to confirmation.
func (h *WalkinHandler) SubmitPayment(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	var p wizard.Payment
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.wizard(nil).SubmitPayment(d, p); err != nil {
		return h.wizardError(c, d, err)
	}
	return h.save(c, http.StatusOK, d, nil)
}

// Submit persists the booking under the draft's submit claim, so
// concurrent submits of one draft store one reservation.  A failed save
// leaves the draft at confirmation and answers with the notice the
// reservation list raised.
func (h *WalkinHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	claimed, err := h.Drafts.Claim(ctx, d.ID)
	if err != nil {
		return h.wizardError(c, d, err)
	}
	if !claimed {
		return h.wizardError(c, d, wizard.ErrSubmitInProgress)
	}
	id := d.ID
	// Reload under the claim; an earlier holder may already have submitted.
	if d, err = h.load(c); err != nil {
		h.release(ctx, id)
		return h.wizardError(c, nil, err)
	}
	rec := &notice.Recorder{}
	if err := h.wizard(rec).Submit(ctx, d); err != nil {
		h.release(ctx, id)
		if _, ok := rec.Last(); ok {
			return failure(c, reservationWriteStatus(err), rec)
		}
		return h.wizardError(c, d, err)
	}
	h.Metrics.ReservationCreated(queue.ChannelWalkIn)
	staff, _ := staffID(c)
	publish(c, h.Publisher, h.logger(), queue.FromReservation(*d.Reservation, queue.ChannelWalkIn, staff, h.now()))
	if err := h.Drafts.Save(ctx, d); err != nil {
		// The reservation is stored; keeping the claim stops a retry from
		// storing it again.
		h.logger().Error("walk-in stored but draft not saved",
			"draft_id", id, "reservation_id", d.Reservation.ID, "err", err)
		return h.wizardError(c, d, err)
	}
	h.release(ctx, id)
	return c.JSON(http.StatusOK, draftBody(d, rec))
}

func (h *WalkinHandler) release(ctx context.Context, id string) {
	if err := h.Drafts.Release(ctx, id); err != nil {
		h.logger().Warn("walk-in submit claim not released", "draft_id", id, "err", err)
	}
}

// Back returns to the previous step keeping the captured data.
func (h *WalkinHandler) Back(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	if err := h.wizard(nil).Back(d); err != nil {
		return h.wizardError(c, d, err)
	}
	return h.save(c, http.StatusOK, d, nil)
}

// Discard drops a draft.  A submitted booking is unaffected.
func (h *WalkinHandler) Discard(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	if err := h.Drafts.Delete(c.Request().Context(), d.ID); err != nil {
		return h.wizardError(c, d, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Receipt renders the PDF receipt of a submitted walk-in.
func (h *WalkinHandler) Receipt(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return h.wizardError(c, nil, err)
	}
	res, err := d.Persisted()
	if err != nil {
		return h.wizardError(c, d, err)
	}
	data := receipt.Data{
		HotelName:   h.HotelName,
		Reservation: *res,
		Method:      d.Payment.Method,
		Paid:        d.Payment.Paid,
		Tendered:    d.Payment.Tendered,
		Change:      d.Payment.Change,
		Reference:   d.Payment.Reference,
		IssuedAt:    h.now(),
	}
	pdf, err := receipt.PDF(data)
	if err != nil {
		h.logger().Error("rendering receipt failed", "reservation_id", res.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "receipt unavailable"})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+receipt.Filename(*res)+`"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
