package identity

import "errors"

// Kind classifies a credential failure.  The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindUnconfirmed
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindUnconfirmed:
		return "unconfirmed"
	case KindRateLimited:
		return "rate_limited"
	case KindUnknown:
		return "unknown"
	}
	return "unknown"
}

// AuthError is returned by sign-in and password operations.  Error returns a
// message that is safe to show to the user; Err keeps the cause for logs.
type AuthError struct {
	Kind Kind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "invalid email or password"
	case KindUnconfirmed:
		return "email address not confirmed"
	case KindRateLimited:
		return "too many sign-in attempts, try again later"
	case KindUnknown:
		return "sign-in failed"
	}
	return "sign-in failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

func authErr(k Kind, cause error) *AuthError { return &AuthError{Kind: k, Err: cause} }

// KindOf extracts the Kind of err, or KindUnknown if err is not an AuthError.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// ErrInvalidSession means an access token is malformed, expired or belongs
// to a revoked session.
var ErrInvalidSession = errors.New("invalid session")

// ErrNoSession is returned by client operations that need a signed-in client.
var ErrNoSession = errors.New("no session")
