package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/hotel-backoffice/internal/model"
)

const (
	reservationColumns = `r.id, r.room_id, rm.room_number, rm.name, r.guest_name, r.guest_document, r.guest_phone,
	r.guest_email, r.check_in, r.check_out, r.guest_count, r.total_price, r.status, r.payment_method, r.notes,
	r.created_at, r.updated_at`
	qReservationList = "SELECT " + reservationColumns + `
	FROM reservations r JOIN rooms rm ON rm.id = r.room_id
	ORDER BY r.created_at DESC, r.id DESC`
	qReservationByID = "SELECT " + reservationColumns + `
	FROM reservations r JOIN rooms rm ON rm.id = r.room_id
	WHERE r.id = ?`
	qReservationInsert = `INSERT INTO reservations (room_id, guest_name, guest_document, guest_phone, guest_email,
	check_in, check_out, guest_count, total_price, status, payment_method, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// ReservationRepo provides CRUD operations for reservations.  Reads always
// join the owning room so callers get room number and name for display.
// All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// List returns all reservations, newest first.
func (r *ReservationRepo) List(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, qReservationList)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns a single reservation with its room fields.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, qReservationByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// Create inserts a reservation and returns its ID.  The total price is
// stored exactly as given.
func (r *ReservationRepo) Create(ctx context.Context, res model.Reservation) (uint64, error) {
	result, err := r.db.ExecContext(ctx, qReservationInsert,
		res.RoomID, res.GuestName, res.GuestDocument, res.GuestPhone, nullString(res.GuestEmail),
		res.CheckIn, res.CheckOut, res.GuestCount, res.TotalPrice, string(res.Status), res.PaymentMethod, res.Notes)
	if err != nil {
		if mysqlErrNumber(err) == mysqlNoReferencedRow {
			return 0, ErrRoomNotFound
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update applies the non-nil fields of p.
func (r *ReservationRepo) Update(ctx context.Context, id uint64, p model.ReservationPatch) error {
	sets := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.GuestName != nil {
		add("guest_name", *p.GuestName)
	}
	if p.GuestDocument != nil {
		add("guest_document", *p.GuestDocument)
	}
	if p.GuestPhone != nil {
		add("guest_phone", *p.GuestPhone)
	}
	if p.GuestEmail != nil {
		add("guest_email", nullString(p.GuestEmail))
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.PaymentMethod != nil {
		add("payment_method", *p.PaymentMethod)
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	q := "UPDATE reservations SET " + strings.Join(sets, ", ") + ", updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	return nil
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		res    model.Reservation
		email  sql.NullString
		status string
		notes  sql.NullString
	)
	if err := s.Scan(&res.ID, &res.RoomID, &res.RoomNumber, &res.RoomName, &res.GuestName, &res.GuestDocument,
		&res.GuestPhone, &email, &res.CheckIn, &res.CheckOut, &res.GuestCount, &res.TotalPrice, &status,
		&res.PaymentMethod, &notes, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return model.Reservation{}, err
	}
	if email.Valid {
		res.GuestEmail = &email.String
	}
	res.Notes = notes.String
	st, err := model.ParseReservationStatus(status)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reservation %d: %w", res.ID, err)
	}
	res.Status = st
	return res, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
