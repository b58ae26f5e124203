// Package guard decides whether a session may see role-protected content
// and, when it may not, where it should be sent instead.
package guard

import (
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/session"
)

// Outcome is what the caller should do with the request.
type Outcome int

const (
	Wait Outcome = iota
	Render
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// State is the guard's reading of a session.
type State int

const (
	StateResolving State = iota
	StateUnauthenticated
	StateNoProfile
	StateWrongRole
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateNoProfile:
		return "authenticated-no-profile"
	case StateWrongRole:
		return "authenticated-wrong-role"
	case StateAuthorized:
		return "authenticated-authorized"
	}
	return "unknown"
}

// Notice is the user-facing notification attached to a redirect.
type Notice string

const (
	NoticeNone          Notice = ""
	NoticeLoginRequired Notice = "login-required"
	NoticeProfileError  Notice = "profile-error"
	NoticeAccessDenied  Notice = "access-denied"
)

// Entry points and dashboards.
const (
	HotelLogin     = "/hotel/login"
	ExecutiveLogin = "/executive/login"
	AdminEntry     = "/admin"

	BaseDashboard      = "/admin/dashboard"
	HotelDashboard     = "/hotel/dashboard"
	ExecutiveDashboard = "/executive/dashboard"
)

// Decision is the result of Decide.  Target and Notice are set only for
// Redirect.
type Decision struct {
	Outcome Outcome
	State   State
	Target  string
	Notice  Notice
}

// Decide is a pure function of the required roles and the session state.
func Decide(required model.RoleSet, s session.State) Decision {
	switch {
	case s.Loading():
		return Decision{Outcome: Wait, State: StateResolving}
	case s.User == nil:
		return Decision{Outcome: Redirect, State: StateUnauthenticated, Target: LoginTarget(required), Notice: NoticeLoginRequired}
	case s.Profile == nil:
		return Decision{Outcome: Redirect, State: StateNoProfile, Target: LoginTarget(required), Notice: NoticeProfileError}
	case !required.Has(s.Profile.Role):
		return Decision{Outcome: Redirect, State: StateWrongRole, Target: Dashboard(s.Profile.Role), Notice: NoticeAccessDenied}
	default:
		return Decision{Outcome: Render, State: StateAuthorized}
	}
}

// LoginTarget picks the login page for a protected area from the roles it
// admits.  The hotel login wins when both scoped roles are admitted.  It
// serves both the signed-out and the missing-profile redirect, so a session
// without a profile reaches AdminEntry only when neither hotel-admin nor
// total-admin is admitted.
func LoginTarget(required model.RoleSet) string {
	switch {
	case required.Has(model.RoleHotelAdmin):
		return HotelLogin
	case required.Has(model.RoleTotalAdmin):
		return ExecutiveLogin
	default:
		return AdminEntry
	}
}

// Dashboard is the landing page of a role; unknown roles go to the generic
// entry point.
func Dashboard(r model.Role) string {
	switch r {
	case model.RoleBaseAdmin:
		return BaseDashboard
	case model.RoleHotelAdmin:
		return HotelDashboard
	case model.RoleTotalAdmin:
		return ExecutiveDashboard
	}
	return AdminEntry
}
