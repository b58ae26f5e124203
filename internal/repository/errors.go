// Package repository defines the MySQL data access layer and the error
// values reused across repositories.  Handlers and services compare against
// these sentinels with errors.Is to pick a response.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent records, such as deleting a room that still has
// reservations.
var ErrConflict = errors.New("conflict")

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailExists         = errors.New("email already exists")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomNumberExists    = errors.New("room number already exists")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrTokenNotFound       = errors.New("refresh token not found")
)

// MySQL server error numbers inspected by the repositories.
const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
