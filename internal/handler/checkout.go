package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/checkout"
	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
)

// CheckoutHandler serves the public self-service booking.
type CheckoutHandler struct {
	Flow      *checkout.Flow
	Publisher Publisher
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

func NewCheckoutHandler(f *checkout.Flow, p Publisher, m *metrics.Metrics, log *slog.Logger) *CheckoutHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CheckoutHandler{Flow: f, Publisher: p, Metrics: m, Log: log}
}

// Checkout validates the whole form, runs the payment and records the
// booking.  Every rejected field is returned together.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	var form checkout.Form
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	b, err := h.Flow.Checkout(c.Request().Context(), form)
	if err != nil {
		var fe notice.FieldErrors
		switch {
		case errors.As(err, &fe):
			h.Metrics.Payment("invalid")
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": fe.Map()})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.Metrics.Payment("abandoned")
			h.Log.Info("checkout abandoned before payment completed", "room_id", form.RoomID)
			return c.JSON(http.StatusRequestTimeout, echo.Map{"error": "payment was not completed"})
		}
		h.Metrics.Payment("error")
		h.Log.Error("checkout failed", "room_id", form.RoomID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}
	h.Metrics.Payment("success")
	h.Metrics.ReservationCreated(queue.ChannelCheckout)
	publish(c, h.Publisher, h.Log, queue.FromBooking(*b))
	return c.JSON(http.StatusCreated, b)
}

// Confirmation returns a booking by transaction id.
func (h *CheckoutHandler) Confirmation(c echo.Context) error {
	b, err := h.Flow.Confirmation(c.Request().Context(), c.Param("txid"))
	if errors.Is(err, checkout.ErrBookingNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	if err != nil {
		h.Log.Error("loading booking failed", "transaction_id", c.Param("txid"), "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking unavailable"})
	}
	return c.JSON(http.StatusOK, b)
}
