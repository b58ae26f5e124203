package model

import (
	"fmt"
	"strings"
)

// Role is the permission level carried by a profile.  The set is closed;
// adding a value means revisiting every switch over Role.
type Role string

const (
	RoleBaseAdmin  Role = "base-admin"
	RoleHotelAdmin Role = "hotel-admin"
	RoleTotalAdmin Role = "total-admin"
)

// AllRoles lists every role in ascending order of reach.
var AllRoles = []Role{RoleBaseAdmin, RoleHotelAdmin, RoleTotalAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBaseAdmin, RoleHotelAdmin, RoleTotalAdmin:
		return true
	}
	return false
}

// ParseRole accepts the canonical spelling as well as the underscore and
// upper-case variants found in older profile rows.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// ParseRoleSet parses a comma separated list such as "hotel-admin,total-admin".
func ParseRoleSet(csv string) (RoleSet, error) {
	s := RoleSet{}
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := ParseRole(part)
		if err != nil {
			return nil, err
		}
		s[r] = struct{}{}
	}
	return s, nil
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Roles returns the members in AllRoles order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range AllRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}
