package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
	"github.com/iliyamo/hotel-backoffice/internal/validation"
	"github.com/iliyamo/hotel-backoffice/internal/wizard"
)

type draftBodyJSON struct {
	Draft struct {
		ID           string             `json:"id"`
		Step         string             `json:"step"`
		RoomOccupied bool               `json:"room_occupied"`
		Reservation  *model.Reservation `json:"reservation"`
	} `json:"draft"`
}

func TestWalkinFlow(t *testing.T) {
	rooms := newMemRooms(
		model.Room{ID: 1, RoomNumber: "101", Name: "Deluxe", Price: 79000, Capacity: 2, Status: model.RoomAvailable},
		model.Room{ID: 2, RoomNumber: "102", Name: "Twin", Price: 60000, Capacity: 2, Status: model.RoomMaintenance},
	)
	store := &memReservations{}
	pub := newCapturePublisher()
	h := &WalkinHandler{
		Rooms:        rooms,
		Reservations: store,
		Directory:    rooms,
		Drafts:       wizard.NewMemoryStore(),
		Validator:    validation.New(),
		Publisher:    pub,
		HotelName:    "Hotel Test",
		Now:          func() time.Time { return time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC) },
	}
	e := newEcho()
	g := e.Group("/walkins")
	g.POST("", h.Start)
	g.GET("/rooms", h.AvailableRooms)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Discard)
	g.POST("/:id/room", h.SelectRoom)
	g.POST("/:id/guest", h.SubmitGuest)
	g.POST("/:id/payment", h.SubmitPayment)
	g.POST("/:id/submit", h.Submit)
	g.POST("/:id/back", h.Back)
	g.GET("/:id/receipt", h.Receipt)

	staff := []string{"X-Test-User", "5"}
	step := func(method, path, body string, want int) draftBodyJSON {
		t.Helper()
		rec := call(e, method, path, body, staff...)
		if rec.Code != want {
			t.Fatalf("%s %s: %d %s", method, path, rec.Code, rec.Body)
		}
		var out draftBodyJSON
		decode(t, rec, &out)
		return out
	}

	d := step(http.MethodPost, "/walkins", "", http.StatusCreated)
	id := d.Draft.ID
	if id == "" || d.Draft.Step != "room-selection" {
		t.Fatalf("start = %+v", d.Draft)
	}
	base := "/walkins/" + id

	rec := call(e, http.MethodGet, "/walkins/rooms", "", staff...)
	var avail struct {
		Rooms []model.Room `json:"rooms"`
	}
	decode(t, rec, &avail)
	if len(avail.Rooms) != 1 || avail.Rooms[0].ID != 1 {
		t.Fatalf("available rooms = %+v", avail.Rooms)
	}

	rec = call(e, http.MethodPost, base+"/payment", `{"method":"cash","tendered":1}`, staff...)
	var conflict errorBody
	decode(t, rec, &conflict)
	if rec.Code != http.StatusConflict || conflict.Step != "room-selection" {
		t.Fatalf("out of order step: %d %+v", rec.Code, conflict)
	}

	if rec := call(e, http.MethodPost, base+"/room", `{"room_id":2}`, staff...); rec.Code != http.StatusConflict {
		t.Fatalf("maintenance room: %d %s", rec.Code, rec.Body)
	}
	d = step(http.MethodPost, base+"/room", `{"room_id":1}`, http.StatusOK)
	if d.Draft.Step != "guest-data" {
		t.Fatalf("after room: %s", d.Draft.Step)
	}

	rec = call(e, http.MethodPost, base+"/guest", `{"name":"","check_in":"2024-01-10","check_out":"2024-01-10","guest_count":1}`, staff...)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid guest: %d %s", rec.Code, rec.Body)
	}
	d = step(http.MethodPost, base+"/guest",
		`{"name":"Ada Lovelace","document":"P1234","phone":"555-0100","check_in":"2024-01-10","check_out":"2024-01-13","guest_count":2}`,
		http.StatusOK)
	if d.Draft.Step != "payment" {
		t.Fatalf("after guest: %s", d.Draft.Step)
	}

	d = step(http.MethodPost, base+"/back", "", http.StatusOK)
	if d.Draft.Step != "guest-data" {
		t.Fatalf("after back: %s", d.Draft.Step)
	}
	step(http.MethodPost, base+"/guest",
		`{"name":"Ada Lovelace","document":"P1234","phone":"555-0100","check_in":"2024-01-10","check_out":"2024-01-13","guest_count":2}`,
		http.StatusOK)

	d = step(http.MethodPost, base+"/payment", `{"method":"cash","tendered":250000}`, http.StatusOK)
	if d.Draft.Step != "confirmation" {
		t.Fatalf("after payment: %s", d.Draft.Step)
	}

	if rec := call(e, http.MethodGet, base, "", "X-Test-User", "6"); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign draft: %d", rec.Code)
	}

	d = step(http.MethodPost, base+"/submit", "", http.StatusOK)
	if d.Draft.Step != "receipt" || d.Draft.Reservation == nil || !d.Draft.RoomOccupied {
		t.Fatalf("after submit: %+v", d.Draft)
	}
	if d.Draft.Reservation.TotalPrice != 237000 || d.Draft.Reservation.Status != model.ReservationConfirmed {
		t.Fatalf("reservation = %+v", d.Draft.Reservation)
	}
	if r, _ := rooms.GetByID(context.Background(), 1); r.Status != model.RoomOccupied {
		t.Fatalf("room status = %s", r.Status)
	}
	ev := pub.next(t)
	if ev.Channel != queue.ChannelWalkIn || ev.StaffUserID != 5 || ev.TotalAmount != 237000 {
		t.Fatalf("event = %+v", ev)
	}

	if rec := call(e, http.MethodPost, base+"/submit", "", staff...); rec.Code != http.StatusConflict {
		t.Fatalf("second submit: %d", rec.Code)
	}
	if list, _ := store.List(context.Background()); len(list) != 1 {
		t.Fatalf("stored %d reservations", len(list))
	}

	rec = call(e, http.MethodGet, base+"/receipt", "", staff...)
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Fatalf("receipt: %d %s", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="receipt-1.pdf"` {
		t.Fatalf("disposition = %q", got)
	}

	if rec := call(e, http.MethodDelete, base, "", staff...); rec.Code != http.StatusNoContent {
		t.Fatalf("discard: %d", rec.Code)
	}
	if rec := call(e, http.MethodGet, base, "", staff...); rec.Code != http.StatusNotFound {
		t.Fatalf("discarded draft: %d", rec.Code)
	}
}

func TestWalkinRequiresUser(t *testing.T) {
	h := &WalkinHandler{Drafts: wizard.NewMemoryStore(), Validator: validation.New()}
	e := newEcho()
	e.POST("/walkins", h.Start)
	if rec := call(e, http.MethodPost, "/walkins", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous start: %d", rec.Code)
	}
}

func walkinServer(h *WalkinHandler) *echo.Echo {
	e := newEcho()
	g := e.Group("/walkins")
	g.POST("", h.Start)
	g.POST("/:id/room", h.SelectRoom)
	g.POST("/:id/guest", h.SubmitGuest)
	g.POST("/:id/payment", h.SubmitPayment)
	g.POST("/:id/submit", h.Submit)
	return e
}

// confirmWalkin drives a new draft of user 5 to confirmation on room 1 and
// returns its path.
func confirmWalkin(t *testing.T, e *echo.Echo) string {
	t.Helper()
	staff := []string{"X-Test-User", "5"}
	rec := call(e, http.MethodPost, "/walkins", "", staff...)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	var d draftBodyJSON
	decode(t, rec, &d)
	base := "/walkins/" + d.Draft.ID
	for _, s := range []struct{ path, body string }{
		{"/room", `{"room_id":1}`},
		{"/guest", `{"name":"Ada Lovelace","document":"P1234","phone":"555-0100","check_in":"2024-01-10","check_out":"2024-01-13","guest_count":2}`},
		{"/payment", `{"method":"card","reference":"POS-1"}`},
	} {
		if rec := call(e, http.MethodPost, base+s.path, s.body, staff...); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", s.path, rec.Code, rec.Body)
		}
	}
	return base
}

func newWalkinHandler(drafts wizard.Store) (*WalkinHandler, *memReservations) {
	rooms := newMemRooms(model.Room{ID: 1, RoomNumber: "101", Name: "Deluxe", Price: 79000, Capacity: 2, Status: model.RoomAvailable})
	store := &memReservations{}
	return &WalkinHandler{
		Rooms:        rooms,
		Reservations: store,
		Directory:    rooms,
		Drafts:       drafts,
		Validator:    validation.New(),
		Now:          func() time.Time { return time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC) },
	}, store
}

func TestWalkinConcurrentSubmit(t *testing.T) {
	h, store := newWalkinHandler(wizard.NewMemoryStore())
	e := walkinServer(h)
	base := confirmWalkin(t, e)

	const n = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		codes = make(chan int, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			codes <- call(e, http.MethodPost, base+"/submit", "", "X-Test-User", "5").Code
		}()
	}
	close(start)
	wg.Wait()
	close(codes)

	got := map[int]int{}
	for code := range codes {
		got[code]++
	}
	if got[http.StatusOK] != 1 || got[http.StatusConflict] != n-1 {
		t.Fatalf("submit codes = %v", got)
	}
	if list, _ := store.List(context.Background()); len(list) != 1 {
		t.Fatalf("stored %d reservations", len(list))
	}
}

// failingDrafts fails Save while fail is set.
type failingDrafts struct {
	*wizard.MemoryStore
	mu   sync.Mutex
	fail bool
}

func (f *failingDrafts) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *failingDrafts) Save(ctx context.Context, d *wizard.Draft) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("draft store unavailable")
	}
	return f.MemoryStore.Save(ctx, d)
}

func TestWalkinSubmitRetryAfterLostSave(t *testing.T) {
	drafts := &failingDrafts{MemoryStore: wizard.NewMemoryStore()}
	h, store := newWalkinHandler(drafts)
	e := walkinServer(h)
	base := confirmWalkin(t, e)

	drafts.setFail(true)
	if rec := call(e, http.MethodPost, base+"/submit", "", "X-Test-User", "5"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("submit with failing save: %d %s", rec.Code, rec.Body)
	}
	drafts.setFail(false)

	rec := call(e, http.MethodPost, base+"/submit", "", "X-Test-User", "5")
	var body errorBody
	decode(t, rec, &body)
	if rec.Code != http.StatusConflict || body.Error != wizard.ErrSubmitInProgress.Error() {
		t.Fatalf("retry: %d %+v", rec.Code, body)
	}
	if list, _ := store.List(context.Background()); len(list) != 1 {
		t.Fatalf("stored %d reservations", len(list))
	}
}

func TestWalkinSubmitRoomTakenMeanwhile(t *testing.T) {
	h, store := newWalkinHandler(wizard.NewMemoryStore())
	e := walkinServer(h)
	first := confirmWalkin(t, e)
	second := confirmWalkin(t, e)

	if rec := call(e, http.MethodPost, first+"/submit", "", "X-Test-User", "5"); rec.Code != http.StatusOK {
		t.Fatalf("first submit: %d %s", rec.Code, rec.Body)
	}
	rec := call(e, http.MethodPost, second+"/submit", "", "X-Test-User", "5")
	var body errorBody
	decode(t, rec, &body)
	if rec.Code != http.StatusConflict || body.Step != "confirmation" {
		t.Fatalf("second submit on an occupied room: %d %+v", rec.Code, body)
	}
	if list, _ := store.List(context.Background()); len(list) != 1 {
		t.Fatalf("stored %d reservations", len(list))
	}
}
