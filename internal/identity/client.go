package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event names the kind of auth change delivered to listeners.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Listener receives auth changes.  sess is nil after sign-out.
type Listener func(ev Event, sess *Session)

// Client is the view of the session store held by one browser or API
// client.  Listeners run on the goroutine that caused the change, after the
// client's own lock is released.
type Client struct {
	svc *Service

	mu        sync.Mutex
	session   *Session
	listeners map[int]Listener
	nextID    int
}

// NewClient returns a client, optionally holding a session restored from an
// earlier sign-in.
func NewClient(svc *Service, restored *Session) *Client {
	return &Client{svc: svc, session: restored, listeners: map[int]Listener{}}
}

// OnAuthStateChange registers fn and returns a function that removes it.
func (c *Client) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// set replaces the held session and returns the listeners to notify.
func (c *Client) set(sess *Session) []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
	out := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func (c *Client) emit(ev Event, sess *Session) {
	for _, fn := range c.set(sess) {
		fn(ev, sess)
	}
}

// Current returns the held session without contacting the store.
func (c *Client) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// GetSession returns the held session after checking it is still live.  An
// expired access token is refreshed when a refresh token is held; a revoked
// session is dropped and reported as signed out.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	cur := c.Current()
	if cur == nil {
		return nil, nil
	}
	if time.Now().Before(cur.AccessExpires) {
		verified, err := c.svc.Verify(ctx, cur.AccessToken)
		if err == nil {
			if cur.RefreshToken != "" {
				verified.RefreshToken = cur.RefreshToken
				verified.RefreshExpires = cur.RefreshExpires
			}
			return verified, nil
		}
		if !errors.Is(err, ErrInvalidSession) {
			return nil, err
		}
	}
	if cur.RefreshToken != "" {
		sess, err := c.Refresh(ctx)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrInvalidSession) {
			return nil, err
		}
	}
	c.emit(EventSignedOut, nil)
	return nil, nil
}

// SignInWithPassword opens a session and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := c.svc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.emit(EventSignedIn, sess)
	return sess, nil
}

// SignOut revokes the session remotely.  The local session is cleared and
// SIGNED_OUT emitted even when revocation fails; the error is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if cur := c.Current(); cur != nil {
		err = c.svc.Revoke(ctx, cur.ID)
	}
	c.emit(EventSignedOut, nil)
	return err
}

// Refresh rotates the held refresh token and emits TOKEN_REFRESHED.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	cur := c.Current()
	if cur == nil || cur.RefreshToken == "" {
		return nil, ErrNoSession
	}
	sess, err := c.svc.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		return nil, err
	}
	c.emit(EventTokenRefreshed, sess)
	return sess, nil
}

// Adopt installs a session refreshed outside this client, for example by a
// raw refresh token presented over HTTP, and emits TOKEN_REFRESHED.
func (c *Client) Adopt(sess *Session) {
	c.emit(EventTokenRefreshed, sess)
}

// UpdatePassword changes the signed-in user's password and emits
// USER_UPDATED.
func (c *Client) UpdatePassword(ctx context.Context, current, next string) error {
	cur := c.Current()
	if cur == nil {
		return ErrNoSession
	}
	if err := c.svc.ChangePassword(ctx, cur.User.ID, current, next); err != nil {
		return err
	}
	c.emit(EventUserUpdated, cur)
	return nil
}
