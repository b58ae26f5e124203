// Package session owns the authenticated state of one client: who is signed
// in, the role profile resolved for them, and whether that is still being
// worked out.  The state moves through explicit phases so a role decision is
// never taken on a half-resolved session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/hotel-backoffice/internal/identity"
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
)

// Phase is the lifecycle position of a session.
type Phase int

const (
	// PhaseIdle: no user.  Err may carry the last credential failure.
	PhaseIdle Phase = iota
	// PhaseAuthenticating: the session store is being asked who is signed in.
	PhaseAuthenticating
	// PhaseResolvingProfile: a user is known, its profile is being fetched.
	PhaseResolvingProfile
	// PhaseReady: user and profile are both set.
	PhaseReady
	// PhaseError: a user is known but no profile could be resolved.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseResolvingProfile:
		return "resolving-profile"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// ErrKind separates credential failures from profile failures.
type ErrKind int

const (
	ErrKindNone ErrKind = iota
	ErrKindCredentials
	ErrKindProfile
)

// State is an immutable snapshot of a manager.
type State struct {
	Phase      Phase
	User       *identity.User
	Profile    *model.Profile
	Err        string
	ErrKind    ErrKind
	Generation uint64
}

// Loading is true while a role decision must not be taken.
func (s State) Loading() bool {
	return s.Phase == PhaseAuthenticating || s.Phase == PhaseResolvingProfile
}

// AuthClient is the per-client session store.
type AuthClient interface {
	GetSession(ctx context.Context) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn identity.Listener) (unsubscribe func())
}

// ProfileSource looks up the single profile of a user.  An absent row must be
// reported as repository.ErrProfileNotFound.
type ProfileSource interface {
	GetByID(ctx context.Context, id uint64) (*model.Profile, error)
}

const (
	msgProfileNotFound = "profile not found"
	msgProfileTimeout  = "profile lookup timed out"
)

// Manager is the single source of truth for one client's session.  It is
// safe for concurrent use.  Observers registered with OnChange must not call
// back into SignIn, SignOut or Start.
type Manager struct {
	client   AuthClient
	profiles ProfileSource
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      State
	gen        uint64
	resolvedAt time.Time
	cancel  context.CancelFunc
	settled chan struct{}
	unsub   func()

	notifyMu  sync.Mutex
	observers map[int]func(State)
	nextObs   int
}

// NewManager returns a manager in the authenticating phase; Start settles it.
// timeout bounds each profile lookup; zero disables the bound.
func NewManager(client AuthClient, profiles ProfileSource, timeout time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		client:    client,
		profiles:  profiles,
		timeout:   timeout,
		log:       log,
		now:       time.Now,
		state:     State{Phase: PhaseAuthenticating},
		settled:   make(chan struct{}),
		observers: map[int]func(State){},
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn to receive every new state.  Deliveries are
// serialized and always carry the latest state.
func (m *Manager) OnChange(fn func(State)) (unsubscribe func()) {
	m.notifyMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.notifyMu.Unlock()
	return func() {
		m.notifyMu.Lock()
		delete(m.observers, id)
		m.notifyMu.Unlock()
	}
}

func (m *Manager) notify() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	s := m.State()
	for _, fn := range m.observers {
		fn(s)
	}
}

// setLocked installs next as the current state.  Callers hold m.mu.
func (m *Manager) setLocked(next State) {
	wasLoading := m.state.Loading()
	next.Generation = m.gen
	m.state = next
	switch {
	case wasLoading && !next.Loading():
		close(m.settled)
	case !wasLoading && next.Loading():
		m.settled = make(chan struct{})
	}
}

// bumpLocked invalidates any in-flight resolution.
func (m *Manager) bumpLocked() uint64 {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m.gen
}

// Start subscribes to the client and asks it for the current session.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.unsub == nil {
		m.unsub = m.client.OnAuthStateChange(m.handle)
	}
	gen := m.gen
	m.mu.Unlock()

	sess, err := m.client.GetSession(ctx)
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.bumpLocked()
			m.setLocked(State{Phase: PhaseIdle, Err: err.Error(), ErrKind: ErrKindCredentials})
		}
		m.mu.Unlock()
		m.notify()
		return err
	}

	m.mu.Lock()
	stale := m.gen != gen
	m.mu.Unlock()
	if !stale {
		m.handle(identity.EventInitialSession, sess)
	}
	return nil
}

// Close detaches from the client and abandons any in-flight lookup.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.bumpLocked()
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// handle reacts to a session-store notification.
func (m *Manager) handle(ev identity.Event, sess *identity.Session) {
	m.mu.Lock()
	switch {
	case ev == identity.EventSignedOut || sess == nil:
		m.bumpLocked()
		m.setLocked(State{Phase: PhaseIdle})
	case (ev == identity.EventTokenRefreshed || ev == identity.EventUserUpdated) &&
		m.state.Phase == PhaseReady && m.state.User != nil && m.state.User.ID == sess.User.ID:
		// Same user, profile already settled: only the identity fields change.
		next := m.state
		u := sess.User
		next.User = &u
		m.setLocked(next)
	default:
		m.beginResolveLocked(sess.User)
	}
	m.mu.Unlock()
	m.notify()
}

// beginResolveLocked moves to resolving-profile for u and starts the lookup
// in its own goroutine.  Callers hold m.mu.
func (m *Manager) beginResolveLocked(u identity.User) {
	gen := m.bumpLocked()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), m.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	m.cancel = cancel
	m.setLocked(State{Phase: PhaseResolvingProfile, User: &u})
	go m.resolve(ctx, cancel, gen, u)
}

func (m *Manager) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64, u identity.User) {
	defer cancel()
	type result struct {
		p   *model.Profile
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := m.profiles.GetByID(ctx, u.ID)
		done <- result{p, err}
	}()
	// The lookup may ignore ctx; the select still settles on timeout.
	var (
		p      *model.Profile
		err    error
		ctxErr error
	)
	select {
	case r := <-done:
		p, err = r.p, r.err
		ctxErr = ctx.Err()
	case <-ctx.Done():
		ctxErr = ctx.Err()
		err = ctxErr
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.Debug("discarding stale profile resolution", "user_id", u.ID, "generation", gen)
		return
	}
	m.cancel = nil
	next := State{User: &u}
	switch {
	case err == nil && p != nil:
		next.Phase = PhaseReady
		next.Profile = p
	case errors.Is(err, repository.ErrProfileNotFound) || (err == nil && p == nil):
		next.Phase = PhaseError
		next.Err = msgProfileNotFound
		next.ErrKind = ErrKindProfile
	case errors.Is(ctxErr, context.DeadlineExceeded):
		next.Phase = PhaseError
		next.Err = msgProfileTimeout
		next.ErrKind = ErrKindProfile
	default:
		next.Phase = PhaseError
		next.Err = err.Error()
		next.ErrKind = ErrKindProfile
	}
	m.resolvedAt = m.now()
	m.setLocked(next)
	m.mu.Unlock()
	if next.Phase == PhaseError {
		m.log.Warn("profile resolution failed", "user_id", u.ID, "err", next.Err)
	}
	m.notify()
}

// Revalidate starts a new profile lookup for the signed-in user when the
// last one failed for any reason other than a missing profile, or when it
// settled more than maxAge ago.  Zero maxAge disables the age bound.  It
// reports whether a lookup was started.
func (m *Manager) Revalidate(maxAge time.Duration) bool {
	m.mu.Lock()
	s := m.state
	if s.User == nil || (s.Phase != PhaseReady && s.Phase != PhaseError) {
		m.mu.Unlock()
		return false
	}
	transient := s.Phase == PhaseError && s.Err != msgProfileNotFound
	stale := maxAge > 0 && m.now().Sub(m.resolvedAt) >= maxAge
	if !transient && !stale {
		m.mu.Unlock()
		return false
	}
	m.beginResolveLocked(*s.User)
	m.mu.Unlock()
	m.log.Debug("revalidating profile", "user_id", s.User.ID, "phase", s.Phase.String())
	m.notify()
	return true
}

// SignIn delegates to the session store.  On failure the user and profile
// are cleared and an *identity.AuthError is returned.  On success the
// profile is resolved from the SIGNED_IN notification; the state stays
// loading until that settles.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	m.mu.Lock()
	gen := m.bumpLocked()
	m.setLocked(State{Phase: PhaseAuthenticating})
	m.mu.Unlock()
	m.notify()

	sess, err := m.client.SignInWithPassword(ctx, email, password)

	m.mu.Lock()
	current := m.gen == gen && m.state.Phase == PhaseAuthenticating
	if err != nil {
		if current {
			m.bumpLocked()
			m.setLocked(State{Phase: PhaseIdle, Err: err.Error(), ErrKind: ErrKindCredentials})
		}
		m.mu.Unlock()
		m.notify()
		return err
	}
	if current {
		// The client did not notify; drive resolution from the result.
		m.beginResolveLocked(sess.User)
		m.mu.Unlock()
		m.notify()
		return nil
	}
	m.mu.Unlock()
	return nil
}

// SignOut delegates to the session store.  Local state ends cleared whether
// or not the remote call succeeds.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.client.SignOut(ctx)
	m.mu.Lock()
	m.bumpLocked()
	m.setLocked(State{Phase: PhaseIdle})
	m.mu.Unlock()
	m.notify()
	return err
}

// HasRole is false while loading or without a profile.
func (m *Manager) HasRole(roles ...model.Role) bool {
	s := m.State()
	if s.Loading() || s.Profile == nil {
		return false
	}
	for _, r := range roles {
		if s.Profile.Role == r {
			return true
		}
	}
	return false
}

// Wait blocks until the session is no longer loading or ctx ends.
func (m *Manager) Wait(ctx context.Context) (State, error) {
	for {
		m.mu.Lock()
		s := m.state
		ch := m.settled
		m.mu.Unlock()
		if !s.Loading() {
			return s, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return m.State(), ctx.Err()
		}
	}
}
