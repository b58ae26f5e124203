package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/queue"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/validation"
)

// memRooms is an in-memory room table.  It serves as inventory.RoomStore,
// reservation.RoomDirectory and wizard.RoomSource.
type memRooms struct {
	mu     sync.Mutex
	rooms  map[uint64]model.Room
	nextID uint64
}

func newMemRooms(rooms ...model.Room) *memRooms {
	m := &memRooms{rooms: map[uint64]model.Room{}, nextID: 1}
	for _, r := range rooms {
		m.rooms[r.ID] = r
		if r.ID >= m.nextID {
			m.nextID = r.ID + 1
		}
	}
	return m
}

func (m *memRooms) List(context.Context) ([]model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (m *memRooms) GetByID(_ context.Context, id uint64) (model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return model.Room{}, repository.ErrRoomNotFound
	}
	return r, nil
}

func (m *memRooms) Create(_ context.Context, f model.RoomFields) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RoomNumber == *f.RoomNumber {
			return 0, repository.ErrRoomNumberExists
		}
	}
	id := m.nextID
	m.nextID++
	r := model.Room{ID: id, Status: model.RoomAvailable, Amenities: []string{}}
	applyRoom(&r, f)
	m.rooms[id] = r
	return id, nil
}

func (m *memRooms) Update(_ context.Context, id uint64, f model.RoomFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return repository.ErrRoomNotFound
	}
	applyRoom(&r, f)
	m.rooms[id] = r
	return nil
}

func (m *memRooms) SetStatus(_ context.Context, id uint64, status model.RoomStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return repository.ErrRoomNotFound
	}
	r.Status = status
	m.rooms[id] = r
	return nil
}

func (m *memRooms) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return repository.ErrRoomNotFound
	}
	delete(m.rooms, id)
	return nil
}

func applyRoom(r *model.Room, f model.RoomFields) {
	if f.RoomNumber != nil {
		r.RoomNumber = *f.RoomNumber
	}
	if f.Name != nil {
		r.Name = *f.Name
	}
	if f.Description != nil {
		r.Description = *f.Description
	}
	if f.Price != nil {
		r.Price = *f.Price
	}
	if f.Capacity != nil {
		r.Capacity = *f.Capacity
	}
	if f.PhotoURL != nil {
		r.PhotoURL = *f.PhotoURL
	}
	if f.Status != nil {
		r.Status = *f.Status
	}
	if f.Amenities != nil {
		r.Amenities = f.Amenities
	}
}

// memReservations is an in-memory reservation.Store.
type memReservations struct {
	mu    sync.Mutex
	items []model.Reservation
}

func (m *memReservations) List(context.Context) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Reservation, len(m.items))
	for i := range m.items {
		out[len(m.items)-1-i] = m.items[i]
	}
	return out, nil
}

func (m *memReservations) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Reservation{}, repository.ErrReservationNotFound
}

func (m *memReservations) Create(_ context.Context, r model.Reservation) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uint64(len(m.items) + 1)
	r.CreatedAt = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	m.items = append(m.items, r)
	return r.ID, nil
}

func (m *memReservations) Update(_ context.Context, id uint64, p model.ReservationPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID != id {
			continue
		}
		if p.Status != nil {
			m.items[i].Status = *p.Status
		}
		if p.Notes != nil {
			m.items[i].Notes = *p.Notes
		}
		return nil
	}
	return repository.ErrReservationNotFound
}

// capturePublisher hands published events to the test.
type capturePublisher struct{ events chan queue.ReservationConfirmedEvent }

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{events: make(chan queue.ReservationConfirmedEvent, 8)}
}

func (p *capturePublisher) PublishReservationConfirmed(_ context.Context, ev queue.ReservationConfirmedEvent) error {
	p.events <- ev
	return nil
}

func (p *capturePublisher) next(t *testing.T) queue.ReservationConfirmedEvent {
	t.Helper()
	select {
	case ev := <-p.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
	return queue.ReservationConfirmedEvent{}
}

func (p *capturePublisher) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-p.events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// newEcho returns an echo instance with the request validator installed.
// The X-Test-User header stands in for the authenticated user id.
func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get("X-Test-User"); id != "" {
				c.Set("user_id", id)
			}
			return next(c)
		}
	})
	return e
}

func call(e *echo.Echo, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	Step   string            `json:"step"`
}
