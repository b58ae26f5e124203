package reservation

import (
	"sort"
	"strings"

	"github.com/iliyamo/hotel-backoffice/internal/model"
)

// Filter narrows a reservation list.  Zero fields match everything.
type Filter struct {
	RoomID uint64
	Status model.ReservationStatus
	// Query matches guest name, document, phone or email, ignoring case.
	Query string
}

func (f Filter) Match(r model.Reservation) bool {
	if f.RoomID != 0 && r.RoomID != f.RoomID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	fields := []string{r.GuestName, r.GuestDocument, r.GuestPhone}
	if r.GuestEmail != nil {
		fields = append(fields, *r.GuestEmail)
	}
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// Apply returns the reservations matching f, in their original order.
func Apply(items []model.Reservation, f Filter) []model.Reservation {
	out := []model.Reservation{}
	for _, r := range items {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// SortKey selects the list order.
type SortKey string

const (
	SortCreated SortKey = "created" // newest first
	SortTotal   SortKey = "total"   // highest first
	SortGuest   SortKey = "guest"   // A to Z
)

// ParseSortKey falls back to SortCreated for empty or unknown keys.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(s); k {
	case SortCreated, SortTotal, SortGuest:
		return k
	}
	return SortCreated
}

// Sort returns a sorted copy of items.  Ties keep their input order.
func Sort(items []model.Reservation, key SortKey) []model.Reservation {
	out := append([]model.Reservation(nil), items...)
	var less func(a, b model.Reservation) bool
	switch key {
	case SortTotal:
		less = func(a, b model.Reservation) bool { return a.TotalPrice > b.TotalPrice }
	case SortGuest:
		less = func(a, b model.Reservation) bool { return a.GuestName < b.GuestName }
	default:
		less = func(a, b model.Reservation) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Stats summarises a reservation list.
type Stats struct {
	Total   int                             `json:"total"`
	Counts  map[model.ReservationStatus]int `json:"counts"`
	Revenue int64                           `json:"revenue"`
}

// Compute counts items per status and sums the revenue of confirmed and
// completed reservations.  It is recomputed on every call.
func Compute(items []model.Reservation) Stats {
	s := Stats{Total: len(items), Counts: make(map[model.ReservationStatus]int, len(model.AllReservationStatuses))}
	for _, st := range model.AllReservationStatuses {
		s.Counts[st] = 0
	}
	for _, r := range items {
		s.Counts[r.Status]++
		if r.Status.Revenue() {
			s.Revenue += r.TotalPrice
		}
	}
	return s
}
