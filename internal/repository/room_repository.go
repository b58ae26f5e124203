package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/hotel-backoffice/internal/model"
)

const (
	roomColumns   = "id, room_number, name, description, price, capacity, photo_url, status, amenities, created_at, updated_at"
	qRoomList     = "SELECT " + roomColumns + " FROM rooms ORDER BY room_number"
	qRoomByID     = "SELECT " + roomColumns + " FROM rooms WHERE id = ?"
	qRoomInsert   = "INSERT INTO rooms (room_number, name, description, price, capacity, photo_url, status, amenities) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	qRoomDelete   = "DELETE FROM rooms WHERE id = ?"
	qRoomSetState = "UPDATE rooms SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
)

// RoomRepo encapsulates all queries against the rooms table.  Amenities are
// stored as a JSON array column.
type RoomRepo struct {
	db *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// List returns every room ordered by room number.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx, qRoomList)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches one room or ErrRoomNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx, qRoomByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, ErrRoomNotFound
	}
	return room, err
}

// Create inserts a room.  Missing optional fields take their column
// defaults; status defaults to available.
func (r *RoomRepo) Create(ctx context.Context, f model.RoomFields) (uint64, error) {
	status := model.RoomAvailable
	if f.Status != nil {
		status = *f.Status
	}
	amenities, err := encodeAmenities(f.Amenities)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, qRoomInsert,
		deref(f.RoomNumber), deref(f.Name), deref(f.Description),
		derefInt64(f.Price), derefInt(f.Capacity), deref(f.PhotoURL), string(status), amenities)
	if err != nil {
		if mysqlErrNumber(err) == mysqlDuplicateEntry {
			return 0, ErrRoomNumberExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update applies the non-nil fields of f.  An empty patch only checks that
// the room exists.
func (r *RoomRepo) Update(ctx context.Context, id uint64, f model.RoomFields) error {
	sets := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if f.RoomNumber != nil {
		add("room_number", *f.RoomNumber)
	}
	if f.Name != nil {
		add("name", *f.Name)
	}
	if f.Description != nil {
		add("description", *f.Description)
	}
	if f.Price != nil {
		add("price", *f.Price)
	}
	if f.Capacity != nil {
		add("capacity", *f.Capacity)
	}
	if f.PhotoURL != nil {
		add("photo_url", *f.PhotoURL)
	}
	if f.Status != nil {
		add("status", string(*f.Status))
	}
	if f.Amenities != nil {
		a, err := encodeAmenities(f.Amenities)
		if err != nil {
			return err
		}
		add("amenities", a)
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	q := "UPDATE rooms SET " + strings.Join(sets, ", ") + ", updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		if mysqlErrNumber(err) == mysqlDuplicateEntry {
			return ErrRoomNumberExists
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when values are unchanged; tell that
		// apart from a missing room.
		_, err := r.GetByID(ctx, id)
		return err
	}
	return nil
}

// SetStatus changes only the occupancy status.
func (r *RoomRepo) SetStatus(ctx context.Context, id uint64, status model.RoomStatus) error {
	res, err := r.db.ExecContext(ctx, qRoomSetState, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	return nil
}

// Delete removes a room.  Rooms referenced by reservations yield ErrConflict.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, qRoomDelete, id)
	if err != nil {
		if mysqlErrNumber(err) == mysqlRowIsReferenced {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(s rowScanner) (model.Room, error) {
	var (
		room      model.Room
		desc      sql.NullString
		photo     sql.NullString
		status    string
		amenities []byte
	)
	if err := s.Scan(&room.ID, &room.RoomNumber, &room.Name, &desc, &room.Price, &room.Capacity,
		&photo, &status, &amenities, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return model.Room{}, err
	}
	room.Description = desc.String
	room.PhotoURL = photo.String
	st, err := model.ParseRoomStatus(status)
	if err != nil {
		return model.Room{}, fmt.Errorf("room %d: %w", room.ID, err)
	}
	room.Status = st
	room.Amenities = []string{}
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &room.Amenities); err != nil {
			return model.Room{}, fmt.Errorf("room %d amenities: %w", room.ID, err)
		}
	}
	return room, nil
}

func encodeAmenities(a []string) (string, error) {
	if a == nil {
		a = []string{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
