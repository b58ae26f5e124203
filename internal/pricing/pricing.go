// Package pricing derives the number of nights, the total due and the cash
// change of a stay.  Amounts are in the smallest currency unit.
package pricing

import (
	"errors"
	"time"
)

const (
	day        = 24 * time.Hour
	DateLayout = "2006-01-02"
)

var (
	ErrInvalidStay        = errors.New("check-out must be after check-in")
	ErrInvalidRate        = errors.New("nightly rate must be positive")
	ErrInsufficientAmount = errors.New("insufficient amount")
)

// Quote is the price of a stay at the rate in force when it was made.
type Quote struct {
	Nights      int   `json:"nights"`
	NightlyRate int64 `json:"nightly_rate"`
	Total       int64 `json:"total"`
}

// Nights is the number of started days between check-in and check-out.
// A stay that does not end after it starts is invalid.
func Nights(checkIn, checkOut time.Time) (int, error) {
	d := checkOut.Sub(checkIn)
	if d <= 0 {
		return 0, ErrInvalidStay
	}
	n := int(d / day)
	if d%day != 0 {
		n++
	}
	return n, nil
}

// Total is nights × nightly rate.
func Total(nightlyRate int64, nights int) int64 {
	return nightlyRate * int64(nights)
}

// QuoteStay prices a stay.
func QuoteStay(nightlyRate int64, checkIn, checkOut time.Time) (Quote, error) {
	if nightlyRate <= 0 {
		return Quote{}, ErrInvalidRate
	}
	n, err := Nights(checkIn, checkOut)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Nights: n, NightlyRate: nightlyRate, Total: Total(nightlyRate, n)}, nil
}

// Change is what a cash payment returns to the guest.
func Change(total, tendered int64) (int64, error) {
	if tendered < total {
		return 0, ErrInsufficientAmount
	}
	return tendered - total, nil
}

// ParseDate reads a calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DateOf returns the calendar date of t, as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
