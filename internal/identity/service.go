// Package identity is the session store: it checks credentials against the
// users table, issues access and refresh tokens bound to a session id, and
// hands out per-client handles that notify subscribers of auth changes.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/utils"
)

// User is the authenticated identity carried by a session.
type User struct {
	ID    uint64
	Email string
}

// Session is one signed-in client.  RefreshToken is the raw token and is only
// known to the client that signed in or refreshed.
type Session struct {
	ID             string
	User           User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// UserStore is the subset of repository.UserRepo the service needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
}

// TokenStore is the subset of repository.TokenRepo the service needs.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, sessionID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeSession(ctx context.Context, sessionID string) error
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

// Options carries the token and hashing settings from config.
type Options struct {
	Secret         string
	AccessTTL      time.Duration
	RefreshTTLDays int
	BcryptCost     int
}

type Service struct {
	users    UserStore
	tokens   TokenStore
	throttle *LoginThrottle
	opts     Options
	log      *slog.Logger
}

func NewService(users UserStore, tokens TokenStore, throttle *LoginThrottle, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, tokens: tokens, throttle: throttle, opts: opts, log: log}
}

// SignIn checks email and password and opens a new session.  Failures are
// always *AuthError.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	blocked, err := s.throttle.Blocked(ctx, email)
	if err != nil {
		// Throttle storage is advisory; sign-in proceeds without it.
		s.log.Warn("login throttle unavailable", "err", err)
	}
	if blocked {
		return nil, authErr(KindRateLimited, nil)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.recordFailure(ctx, email)
			return nil, authErr(KindInvalidCredentials, err)
		}
		return nil, authErr(KindUnknown, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		s.recordFailure(ctx, email)
		return nil, authErr(KindInvalidCredentials, nil)
	}
	if !u.Confirmed() {
		return nil, authErr(KindUnconfirmed, nil)
	}
	if err := s.throttle.Reset(ctx, email); err != nil {
		s.log.Warn("login throttle reset failed", "err", err)
	}

	sid, err := utils.NewSessionID()
	if err != nil {
		return nil, authErr(KindUnknown, err)
	}
	sess, err := s.issue(ctx, User{ID: u.ID, Email: u.Email}, sid)
	if err != nil {
		return nil, authErr(KindUnknown, err)
	}
	return sess, nil
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if err := s.throttle.Fail(ctx, email); err != nil {
		s.log.Warn("login throttle update failed", "err", err)
	}
}

// issue signs a fresh access token and stores a new refresh token for sid.
func (s *Service) issue(ctx context.Context, u User, sid string) (*Session, error) {
	access, err := utils.NewAccessToken(s.opts.Secret, u.ID, u.Email, sid, s.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(s.opts.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, sid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &Session{
		ID:             sid,
		User:           u,
		AccessToken:    access.Token,
		AccessExpires:  access.Exp,
		RefreshToken:   refresh.Raw,
		RefreshExpires: refresh.Exp,
	}, nil
}

// Verify checks an access token and that its session has not been revoked.
// The returned session has no refresh token.
func (s *Service) Verify(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := utils.ParseAccessToken(s.opts.Secret, accessToken)
	if err != nil {
		return nil, ErrInvalidSession
	}
	uid, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidSession
	}
	live, err := s.tokens.SessionActive(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrInvalidSession
	}
	sess := &Session{
		ID:          claims.SessionID,
		User:        User{ID: uid, Email: claims.Email},
		AccessToken: accessToken,
	}
	if claims.ExpiresAt != nil {
		sess.AccessExpires = claims.ExpiresAt.Time
	}
	return sess, nil
}

// Refresh rotates a refresh token within its session.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(rawRefresh))
	uid, sid, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return s.issue(ctx, User{ID: u.ID, Email: u.Email}, sid)
}

// SessionOf resolves the session a raw refresh token belongs to without
// rotating it.
func (s *Service) SessionOf(ctx context.Context, rawRefresh string) (string, error) {
	_, sid, err := s.tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(strings.TrimSpace(rawRefresh)))
	if errors.Is(err, repository.ErrTokenNotFound) {
		return "", ErrInvalidSession
	}
	return sid, err
}

// Revoke ends a session by revoking all of its refresh tokens.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	return s.tokens.RevokeSession(ctx, sessionID)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return authErr(KindUnknown, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return authErr(KindInvalidCredentials, nil)
	}
	hash, err := utils.HashPassword(next, s.opts.BcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, userID, hash)
}
