package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/middleware"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
)

// Publisher sends booking events.  A nil Publisher disables events.
type Publisher interface {
	PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
}

const publishTimeout = 5 * time.Second

// publish sends ev in the background.  The request does not wait for the
// broker and a failed publish never fails the booking.
func publish(c echo.Context, p Publisher, log *slog.Logger, ev queue.ReservationConfirmedEvent) {
	if p == nil {
		return
	}
	ctx := context.WithoutCancel(c.Request().Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := p.PublishReservationConfirmed(ctx, ev); err != nil {
			log.Warn("publishing reservation event failed", "reservation_id", ev.ReservationID, "channel", ev.Channel, "err", err)
		}
	}()
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// staffID parses the authenticated user id set by middleware.Authenticate.
func staffID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(middleware.UserID(c), 10, 64)
	if err != nil {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

// bindValid binds the body into v and validates it with the echo validator.
// It writes the error response itself and reports whether to continue.
func bindValid(c echo.Context, v interface{}) (bool, error) {
	if err := c.Bind(v); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(v); err != nil {
		return false, fieldErrors(c, err)
	}
	return true, nil
}

// fieldErrors renders validation failures as 422 with one message per field.
func fieldErrors(c echo.Context, err error) error {
	var fe notice.FieldErrors
	if errors.As(err, &fe) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "validation failed", "fields": fe.Map()})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

// failure renders an access-layer error with the notice it produced.
func failure(c echo.Context, status int, rec *notice.Recorder) error {
	msg := http.StatusText(status)
	if n, ok := rec.Last(); ok {
		msg = n.Message
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// withNotice adds the last notice of rec to body under "notice".
func withNotice(body echo.Map, rec *notice.Recorder) echo.Map {
	if n, ok := rec.Last(); ok {
		body["notice"] = n
	}
	return body
}
