package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iliyamo/hotel-backoffice/internal/checkout"
	"github.com/iliyamo/hotel-backoffice/internal/inventory"
	"github.com/iliyamo/hotel-backoffice/internal/metrics"
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
	"github.com/iliyamo/hotel-backoffice/internal/scratch"
)

const checkoutForm = `{"room_id":1,"guest_name":"Ada Lovelace","guest_email":"ada@example.test","guest_phone":"555-0100","guest_count":2,` +
	`"check_in":"2024-01-10","check_out":"2024-01-13","card_number":"4242 4242 4242 4242","card_holder":"ADA LOVELACE","card_expiry":"12/26","cvv":"123"}`

func TestCheckoutHandler(t *testing.T) {
	store := scratch.NewMemoryStore()
	catalog := inventory.NewCatalog(store)
	err := catalog.Publish(context.Background(), []model.Room{
		{ID: 1, RoomNumber: "101", Name: "Deluxe", Price: 79000, Capacity: 2, Status: model.RoomAvailable},
	})
	if err != nil {
		t.Fatal(err)
	}
	now := func() time.Time { return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC) }
	flow := checkout.New(catalog, checkout.NewScratchBookings(store), 0, nil, now)
	pub := newCapturePublisher()
	m := metrics.New(prometheus.NewRegistry())
	h := NewCheckoutHandler(flow, pub, m, nil)

	e := newEcho()
	e.POST("/checkout", h.Checkout)
	e.GET("/checkout/:txid", h.Confirmation)

	rec := call(e, http.MethodPost, "/checkout", checkoutForm)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body)
	}
	var b model.Booking
	decode(t, rec, &b)
	if b.Total != 237000 || b.CardLast4 != "4242" || b.Nights != 3 {
		t.Fatalf("booking = %+v", b)
	}
	ev := pub.next(t)
	if ev.Channel != queue.ChannelCheckout || ev.TransactionID != b.TransactionID {
		t.Fatalf("event = %+v", ev)
	}

	rec = call(e, http.MethodGet, "/checkout/"+b.TransactionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmation: %d", rec.Code)
	}
	if rec := call(e, http.MethodGet, "/checkout/TXN-MISSING", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing confirmation: %d", rec.Code)
	}

	rec = call(e, http.MethodPost, "/checkout", `{"room_id":1,"guest_count":3,"check_in":"2024-01-01","check_out":"2024-01-03","card_expiry":"01/20"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid checkout: %d %s", rec.Code, rec.Body)
	}
	var body errorBody
	decode(t, rec, &body)
	for _, f := range []string{"guest_name", "card_number", "card_expiry", "check_in", "guest_count"} {
		if _, ok := body.Fields[f]; !ok {
			t.Errorf("%s not reported: %v", f, body.Fields)
		}
	}
	pub.none(t)

	if got := testutil.ToFloat64(m.CheckoutPayments.WithLabelValues("success")); got != 1 {
		t.Fatalf("successful payments = %v", got)
	}
	if got := testutil.ToFloat64(m.CheckoutPayments.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("invalid payments = %v", got)
	}
}

func TestCheckoutAbandoned(t *testing.T) {
	store := scratch.NewMemoryStore()
	catalog := inventory.NewCatalog(store)
	_ = catalog.Publish(context.Background(), []model.Room{
		{ID: 1, RoomNumber: "101", Name: "Deluxe", Price: 79000, Capacity: 2, Status: model.RoomAvailable},
	})
	now := func() time.Time { return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC) }
	bookings := checkout.NewScratchBookings(store)
	h := NewCheckoutHandler(checkout.New(catalog, bookings, time.Hour, nil, now), nil, nil, nil)

	e := newEcho()
	e.POST("/checkout", h.Checkout)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutForm)).WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestTimeout {
		t.Fatalf("abandoned checkout: %d %s", rec.Code, rec.Body)
	}
	if list, _ := bookings.List(context.Background()); len(list) != 0 {
		t.Fatalf("abandoned checkout stored %d bookings", len(list))
	}
}
