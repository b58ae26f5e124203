package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	qTokenInsert        = "INSERT INTO refresh_tokens (user_id, session_id, token_hash, expires_at) VALUES (?,?,?,?)"
	qTokenByHash        = "SELECT user_id, session_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1"
	qTokenRevokeHash    = "UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL"
	qTokenRevokeSession = "UPDATE refresh_tokens SET revoked_at=NOW() WHERE session_id=? AND revoked_at IS NULL"
	qTokenRevokeUser    = "UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL"
	qTokenSessionLive   = "SELECT COUNT(*) FROM refresh_tokens WHERE session_id=? AND revoked_at IS NULL AND expires_at > ?"
)

// TokenRepo persists and validates refresh tokens.  Every row carries the
// session id of the sign-in it belongs to; a session is live while at least
// one of its tokens is unrevoked and unexpired.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, sessionID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx, qTokenInsert, userID, sessionID, tokenHash, exp)
	return err
}

// ValidateRefresh returns the owner and session of a non-revoked,
// non-expired token.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, string, error) {
	var (
		userID    uint64
		sessionID string
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, qTokenByHash, tokenHash).Scan(&userID, &sessionID, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrTokenNotFound
		}
		return 0, "", err
	}
	if revokedAt.Valid || time.Now().UTC().After(expiresAt) {
		return 0, "", ErrTokenNotFound
	}
	return userID, sessionID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, qTokenRevokeHash, tokenHash)
	return err
}

// RevokeSession revokes every token of a session.
func (r *TokenRepo) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx, qTokenRevokeSession, sessionID)
	return err
}

// RevokeAllForUser revokes all of the user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, qTokenRevokeUser, userID)
	return err
}

// SessionActive reports whether the session still has a usable token.
func (r *TokenRepo) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, qTokenSessionLive, sessionID, time.Now().UTC()).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
