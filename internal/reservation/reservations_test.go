package reservation

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/notice"
	"github.com/iliyamo/hotel-backoffice/internal/pricing"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/validation"
)

type memStore struct {
	mu      sync.Mutex
	rows    []model.Reservation
	rooms   *memRooms
	clock   time.Time
	listErr error
}

func (m *memStore) List(context.Context) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := append([]model.Reservation(nil), m.rows...)
	return Sort(out, SortCreated), nil
}

func (m *memStore) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Reservation{}, repository.ErrReservationNotFound
}

func (m *memStore) Create(_ context.Context, r model.Reservation) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms.rooms[r.RoomID]
	if !ok {
		return 0, repository.ErrRoomNotFound
	}
	m.clock = m.clock.Add(time.Minute)
	r.ID = uint64(len(m.rows) + 1)
	r.RoomNumber, r.RoomName = room.RoomNumber, room.Name
	r.CreatedAt, r.UpdatedAt = m.clock, m.clock
	m.rows = append(m.rows, r)
	return r.ID, nil
}

func (m *memStore) Update(_ context.Context, id uint64, p model.ReservationPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID != id {
			continue
		}
		if p.Status != nil {
			m.rows[i].Status = *p.Status
		}
		if p.Notes != nil {
			m.rows[i].Notes = *p.Notes
		}
		return nil
	}
	return repository.ErrReservationNotFound
}

type memRooms struct {
	rooms  map[uint64]model.Room
	setErr error
}

func (m *memRooms) GetByID(_ context.Context, id uint64) (model.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return model.Room{}, repository.ErrRoomNotFound
	}
	return r, nil
}

func (m *memRooms) SetStatus(_ context.Context, id uint64, s model.RoomStatus) error {
	if m.setErr != nil {
		return m.setErr
	}
	r := m.rooms[id]
	r.Status = s
	m.rooms[id] = r
	return nil
}

func fixture() (*memStore, *memRooms) {
	rooms := &memRooms{rooms: map[uint64]model.Room{
		1: {ID: 1, RoomNumber: "101", Name: "Deluxe", Price: 79000, Capacity: 2, Status: model.RoomAvailable},
		2: {ID: 2, RoomNumber: "201", Name: "Suite", Price: 120000, Capacity: 4, Status: model.RoomAvailable},
	}}
	return &memStore{rooms: rooms, clock: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}, rooms
}

func date(s string) time.Time {
	t, err := pricing.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func stay(room uint64, guest string, guests int) model.Reservation {
	return model.Reservation{
		RoomID: room, GuestName: guest, GuestDocument: "X123", GuestPhone: "555-0100",
		CheckIn: date("2024-01-10"), CheckOut: date("2024-01-13"), GuestCount: guests,
		Status: model.ReservationConfirmed, PaymentMethod: "cash", TotalPrice: 1,
	}
}

func TestCreatePricesAndJoinsRoom(t *testing.T) {
	store, rooms := fixture()
	rec := &notice.Recorder{}
	access := New(store, rooms, rec, nil)

	got, err := access.Create(context.Background(), stay(1, "Ada", 2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.TotalPrice != 237000 {
		t.Fatalf("total = %d, want 237000", got.TotalPrice)
	}
	if got.RoomNumber != "101" || got.RoomName != "Deluxe" {
		t.Fatalf("room fields not joined: %+v", got)
	}
	if len(access.Items()) != 1 {
		t.Fatal("create must reload the list")
	}
	if n, _ := rec.Last(); n.Level != notice.Success {
		t.Fatalf("expected success notice, got %+v", n)
	}
}

func TestCreateRejections(t *testing.T) {
	cases := []struct {
		name string
		in   model.Reservation
		want error
	}{
		{"capacity exceeded", stay(1, "Ada", 3), ErrCapacityExceeded},
		{"unknown room", stay(9, "Ada", 1), repository.ErrRoomNotFound},
		{"check-out not after check-in", func() model.Reservation {
			r := stay(1, "Ada", 1)
			r.CheckOut = r.CheckIn
			return r
		}(), pricing.ErrInvalidStay},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, rooms := fixture()
			rec := &notice.Recorder{}
			got, err := New(store, rooms, rec, nil).Create(context.Background(), tc.in)
			if got != nil || !errors.Is(err, tc.want) {
				t.Fatalf("got %+v, %v; want %v", got, err, tc.want)
			}
			if len(store.rows) != 0 {
				t.Fatal("rejected reservation was stored")
			}
			if n, ok := rec.Last(); !ok || n.Level != notice.Error {
				t.Fatalf("expected error notice, got %+v", n)
			}
		})
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	store, rooms := fixture()
	access := New(store, rooms, nil, nil)
	res, err := access.Create(ctx, stay(1, "Ada", 2))
	if err != nil {
		t.Fatal(err)
	}
	rooms.SetStatus(ctx, 1, model.RoomOccupied)

	pending := model.ReservationPending
	if _, err := access.Update(ctx, res.ID, model.ReservationPatch{Status: &pending}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirmed to pending must be refused, got %v", err)
	}

	done := model.ReservationCompleted
	got, err := access.Update(ctx, res.ID, model.ReservationPatch{Status: &done})
	if err != nil || got.Status != model.ReservationCompleted {
		t.Fatalf("update = %+v, %v", got, err)
	}
	if rooms.rooms[1].Status != model.RoomAvailable {
		t.Fatal("completing a reservation must free its room")
	}

	cancelled := model.ReservationCancelled
	if _, err := access.Update(ctx, res.ID, model.ReservationPatch{Status: &cancelled}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed is terminal, got %v", err)
	}
	if _, err := access.Update(ctx, 99, model.ReservationPatch{Status: &cancelled}); !errors.Is(err, repository.ErrReservationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListFailure(t *testing.T) {
	store, rooms := fixture()
	store.listErr = errors.New("permission denied")
	rec := &notice.Recorder{}
	got, err := New(store, rooms, rec, nil).List(context.Background())
	if got != nil || err == nil {
		t.Fatalf("got %v, %v", got, err)
	}
	if n, _ := rec.Last(); n.Message != "Could not load reservations." {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestOccupy(t *testing.T) {
	ctx := context.Background()
	store, rooms := fixture()
	access := New(store, rooms, nil, nil)
	r := stay(2, "Grace", 1)

	if access.Occupy(ctx, r, date("2024-01-09").Add(15*time.Hour)) {
		t.Fatal("a stay starting tomorrow must not occupy the room")
	}
	if !access.Occupy(ctx, r, date("2024-01-10").Add(15*time.Hour)) || rooms.rooms[2].Status != model.RoomOccupied {
		t.Fatal("a stay starting today must occupy the room")
	}

	rooms.setErr = errors.New("down")
	rec := &notice.Recorder{}
	if New(store, rooms, rec, nil).Occupy(ctx, r, date("2024-01-10")) {
		t.Fatal("failed status write must report false")
	}
	if _, ok := rec.Last(); !ok {
		t.Fatal("failed status write must notify")
	}
}

func TestFilterSortStats(t *testing.T) {
	email := "grace@example.test"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []model.Reservation{
		{ID: 1, RoomID: 1, GuestName: "Charlie", GuestDocument: "D-1", GuestPhone: "555-1", TotalPrice: 100, Status: model.ReservationConfirmed, CreatedAt: base},
		{ID: 2, RoomID: 2, GuestName: "Ada", GuestDocument: "D-2", GuestPhone: "555-2", TotalPrice: 300, Status: model.ReservationCompleted, CreatedAt: base.Add(time.Hour)},
		{ID: 3, RoomID: 1, GuestName: "Bob", GuestDocument: "P-9", GuestPhone: "777-3", TotalPrice: 200, Status: model.ReservationCancelled, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 4, RoomID: 2, GuestName: "Grace", GuestDocument: "D-4", GuestPhone: "555-4", GuestEmail: &email, TotalPrice: 50, Status: model.ReservationPending, CreatedAt: base.Add(3 * time.Hour)},
	}
	ids := func(rs []model.Reservation) []uint64 {
		out := []uint64{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	filters := []struct {
		name string
		f    Filter
		want []uint64
	}{
		{"all", Filter{}, []uint64{1, 2, 3, 4}},
		{"room", Filter{RoomID: 1}, []uint64{1, 3}},
		{"status", Filter{Status: model.ReservationCompleted}, []uint64{2}},
		{"query on document", Filter{Query: "p-9"}, []uint64{3}},
		{"query on email", Filter{Query: "EXAMPLE.test"}, []uint64{4}},
		{"query on phone", Filter{Query: "555"}, []uint64{1, 2, 4}},
		{"combined", Filter{RoomID: 2, Query: "555", Status: model.ReservationPending}, []uint64{4}},
	}
	for _, tc := range filters {
		if got := ids(Apply(items, tc.f)); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}

	sorts := map[SortKey][]uint64{
		SortCreated: {4, 3, 2, 1},
		SortTotal:   {2, 3, 1, 4},
		SortGuest:   {2, 3, 1, 4},
	}
	for key, want := range sorts {
		if got := ids(Sort(items, key)); !reflect.DeepEqual(got, want) {
			t.Errorf("sort %s: got %v, want %v", key, got, want)
		}
	}
	if ParseSortKey("bogus") != SortCreated {
		t.Error("unknown sort key must fall back to created")
	}

	s := Compute(items)
	if s.Total != 4 || s.Revenue != 400 {
		t.Fatalf("stats = %+v", s)
	}
	for _, st := range model.AllReservationStatuses {
		if s.Counts[st] != 1 {
			t.Errorf("count[%s] = %d", st, s.Counts[st])
		}
	}
	if empty := Compute(nil); empty.Counts[model.ReservationPending] != 0 || len(empty.Counts) != 4 {
		t.Fatalf("empty stats = %+v", empty)
	}
}

func TestViewUsesLoadedList(t *testing.T) {
	ctx := context.Background()
	store, rooms := fixture()
	access := New(store, rooms, nil, nil)
	access.Create(ctx, stay(1, "Ada", 1))
	access.Create(ctx, stay(2, "Bob", 1))
	items, stats := access.View(Filter{RoomID: 2}, SortCreated)
	if len(items) != 1 || items[0].GuestName != "Bob" || stats.Total != 1 || stats.Revenue != 360000 {
		t.Fatalf("view = %+v %+v", items, stats)
	}
}

func TestNewReservationForm(t *testing.T) {
	v := validation.New()
	form := NewReservation{
		RoomID: 1, GuestName: "Ada", GuestDocument: "X1", GuestPhone: "555",
		CheckIn: "2024-01-10", CheckOut: "2024-01-13", GuestCount: 2,
	}
	if err := v.Struct(form); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
	r, err := form.Reservation()
	if err != nil || r.Status != model.ReservationPending || !r.CheckOut.Equal(date("2024-01-13")) {
		t.Fatalf("reservation = %+v, %v", r, err)
	}

	form.CheckIn = "10/01/2024"
	form.GuestCount = 0
	var fe notice.FieldErrors
	if err := v.Struct(form); !errors.As(err, &fe) {
		t.Fatalf("expected field errors, got %v", err)
	}
	if _, ok := fe.Get("check_in"); !ok {
		t.Error("bad date must be rejected")
	}
	if _, ok := fe.Get("guest_count"); !ok {
		t.Error("zero guests must be rejected")
	}
}
