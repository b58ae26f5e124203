package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/hotel-backoffice/internal/model"
)

const qProfileByID = "SELECT id, name, email, role, created_at, updated_at FROM profiles WHERE id = ? LIMIT 2"

// ProfileRepo reads role assignments from the profiles table.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// GetByID returns exactly one profile.  A missing row yields
// ErrProfileNotFound; any other failure, including more than one row or an
// unknown role value, is returned as-is so callers can tell a configuration
// gap from a query failure.
func (r *ProfileRepo) GetByID(ctx context.Context, id uint64) (*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx, qProfileByID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Profile
	for rows.Next() {
		var (
			p           model.Profile
			name, email sql.NullString
			role        string
		)
		if err := rows.Scan(&p.ID, &name, &email, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Role, err = model.ParseRole(role); err != nil {
			return nil, fmt.Errorf("profile %d: %w", id, err)
		}
		if name.Valid {
			p.Name = &name.String
		}
		if email.Valid {
			p.Email = &email.String
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(out) {
	case 0:
		return nil, ErrProfileNotFound
	case 1:
		return out[0], nil
	default:
		return nil, fmt.Errorf("profile %d: expected one row, got %d", id, len(out))
	}
}
