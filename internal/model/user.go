package model

import "time"

// User represents an account record as stored in the `users` table.  It is
// the credential side of an identity; the role lives on Profile.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Email            – unique, lower-cased email address.
//  PasswordHash     – bcrypt hashed password.
//  IsActive         – disabled accounts cannot sign in.
//  EmailConfirmedAt – when the address was confirmed (nil until then).
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
	ID               uint64     // users.id
	Email            string     // users.email
	PasswordHash     string     // users.password_hash
	IsActive         bool       // users.is_active
	EmailConfirmedAt *time.Time // users.email_confirmed_at (nullable)
	CreatedAt        time.Time  // users.created_at
	UpdatedAt        time.Time  // users.updated_at
}

// Confirmed reports whether the account finished email confirmation.
func (u User) Confirmed() bool { return u.EmailConfirmedAt != nil }

// Profile is the role-bearing record that belongs one-to-one to a user.  The
// ID equals the user ID.
type Profile struct {
	ID        uint64    `json:"id"`              // profiles.id (= users.id)
	Name      *string   `json:"name,omitempty"`  // profiles.name (nullable)
	Email     *string   `json:"email,omitempty"` // profiles.email (nullable)
	Role      Role      `json:"role"`            // profiles.role
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each row
// belongs to one session; only the SHA‑256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	SessionID string     // refresh_tokens.session_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
