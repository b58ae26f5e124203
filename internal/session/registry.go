package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/hotel-backoffice/internal/identity"
)

// ErrUnknownSession is returned for operations on a session id the registry
// does not hold.
var ErrUnknownSession = errors.New("unknown session")

type entry struct {
	client  *identity.Client
	mgr     *Manager
	expires time.Time
}

// Registry keeps one Manager per signed-in session so every request of that
// session shares the same state.  Entries leave on sign-out or on Sweep
// after their tokens expire.  A resolved profile is trusted for profileTTL;
// after that, or after a failed lookup, the next request resolves it again.
type Registry struct {
	svc        *identity.Service
	profiles   ProfileSource
	timeout    time.Duration
	profileTTL time.Duration
	log        *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(svc *identity.Service, profiles ProfileSource, profileTimeout, profileTTL time.Duration, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		svc:        svc,
		profiles:   profiles,
		timeout:    profileTimeout,
		profileTTL: profileTTL,
		log:        log,
		now:        time.Now,
		entries:    map[string]*entry{},
	}
}

func (r *Registry) newManager(client *identity.Client) *Manager {
	mgr := NewManager(client, r.profiles, r.timeout, r.log)
	mgr.now = r.now
	return mgr
}

// Login signs in on a fresh client and registers its manager under the new
// session id.  The manager may still be resolving the profile on return.
func (r *Registry) Login(ctx context.Context, email, password string) (*identity.Session, *Manager, error) {
	client := identity.NewClient(r.svc, nil)
	mgr := r.newManager(client)
	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		return nil, nil, err
	}
	if err := mgr.SignIn(ctx, email, password); err != nil {
		mgr.Close()
		return nil, nil, err
	}
	sess := client.Current()
	if sess == nil {
		mgr.Close()
		return nil, nil, identity.ErrNoSession
	}
	r.add(sess, client, mgr)
	return sess, mgr, nil
}

// Restore returns the manager of the session an access token belongs to,
// creating it when this process has not seen the session yet.
func (r *Registry) Restore(ctx context.Context, accessToken string) (*Manager, error) {
	_, mgr, err := r.Authenticate(ctx, accessToken)
	return mgr, err
}

// Authenticate is Restore that also returns the verified session.  The
// session carries no refresh token.  A registered manager whose profile
// lookup failed or went stale starts resolving again and is returned
// loading.
func (r *Registry) Authenticate(ctx context.Context, accessToken string) (*identity.Session, *Manager, error) {
	sess, err := r.svc.Verify(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}
	if mgr, ok := r.Lookup(sess.ID); ok {
		mgr.Revalidate(r.profileTTL)
		return sess, mgr, nil
	}

	client := identity.NewClient(r.svc, sess)
	mgr := r.newManager(client)
	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		return nil, nil, err
	}

	r.mu.Lock()
	if e, ok := r.entries[sess.ID]; ok {
		r.mu.Unlock()
		mgr.Close()
		return sess, e.mgr, nil
	}
	r.mu.Unlock()
	r.add(sess, client, mgr)
	return sess, mgr, nil
}

func (r *Registry) add(sess *identity.Session, client *identity.Client, mgr *Manager) {
	sid := sess.ID
	e := &entry{client: client, mgr: mgr, expires: expiryOf(sess)}
	r.mu.Lock()
	r.entries[sid] = e
	r.mu.Unlock()

	client.OnAuthStateChange(func(ev identity.Event, s *identity.Session) {
		switch ev {
		case identity.EventSignedOut:
			r.remove(sid)
		case identity.EventTokenRefreshed, identity.EventSignedIn:
			if s != nil {
				r.mu.Lock()
				e.expires = expiryOf(s)
				r.mu.Unlock()
			}
		case identity.EventInitialSession, identity.EventUserUpdated:
		}
	})
}

func expiryOf(s *identity.Session) time.Time {
	if s.RefreshExpires.After(s.AccessExpires) {
		return s.RefreshExpires
	}
	return s.AccessExpires
}

func (r *Registry) remove(sid string) {
	r.mu.Lock()
	e, ok := r.entries[sid]
	delete(r.entries, sid)
	r.mu.Unlock()
	if ok {
		e.mgr.Close()
	}
}

// Lookup returns the manager registered for sid.
func (r *Registry) Lookup(sid string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil, false
	}
	return e.mgr, true
}

func (r *Registry) client(sid string) (*identity.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Refresh rotates a raw refresh token.  A registered session adopts the new
// tokens and keeps its resolved profile.
func (r *Registry) Refresh(ctx context.Context, rawRefresh string) (*identity.Session, error) {
	sess, err := r.svc.Refresh(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}
	if c, ok := r.client(sess.ID); ok {
		c.Adopt(sess)
	}
	return sess, nil
}

// Logout signs a session out.  Unregistered sessions are revoked directly.
func (r *Registry) Logout(ctx context.Context, sid string) error {
	if mgr, ok := r.Lookup(sid); ok {
		return mgr.SignOut(ctx)
	}
	return r.svc.Revoke(ctx, sid)
}

// LogoutRefresh signs out the session a raw refresh token belongs to.
func (r *Registry) LogoutRefresh(ctx context.Context, rawRefresh string) error {
	sid, err := r.svc.SessionOf(ctx, rawRefresh)
	if err != nil {
		return err
	}
	return r.Logout(ctx, sid)
}

// ChangePassword updates the password of the session's user.
func (r *Registry) ChangePassword(ctx context.Context, sid, current, next string) error {
	c, ok := r.client(sid)
	if !ok {
		return ErrUnknownSession
	}
	return c.UpdatePassword(ctx, current, next)
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops sessions whose tokens expired before now.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var stale []*entry
	for sid, e := range r.entries {
		if e.expires.Before(now) {
			stale = append(stale, e)
			delete(r.entries, sid)
		}
	}
	r.mu.Unlock()
	for _, e := range stale {
		e.mgr.Close()
	}
	return len(stale)
}

// Run sweeps every interval until ctx ends.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := r.Sweep(now); n > 0 {
				r.log.Info("expired sessions swept", "count", n)
			}
		}
	}
}
