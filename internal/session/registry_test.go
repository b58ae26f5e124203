package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/hotel-backoffice/internal/identity"
	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/repository"
	"github.com/iliyamo/hotel-backoffice/internal/utils"
)

type memUsers struct{ users []model.User }

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memUsers) UpdatePasswordHash(context.Context, uint64, string) error { return nil }

type memToken struct {
	uid     uint64
	sid     string
	exp     time.Time
	revoked bool
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]*memToken
}

func (m *memTokens) StoreRefresh(_ context.Context, uid uint64, sid, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[hash] = &memToken{uid: uid, sid: sid, exp: exp}
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[hash]
	if !ok || r.revoked {
		return 0, "", repository.ErrTokenNotFound
	}
	return r.uid, r.sid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[hash]; ok {
		r.revoked = true
	}
	return nil
}

func (m *memTokens) RevokeSession(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.sid == sid {
			r.revoked = true
		}
	}
	return nil
}

func (m *memTokens) SessionActive(_ context.Context, sid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.sid == sid && !r.revoked {
			return true, nil
		}
	}
	return false, nil
}

func newTestRegistry(t *testing.T, profileTTL time.Duration) (*Registry, *identity.Service, *fakeProfiles) {
	t.Helper()
	hash, err := utils.HashPassword("correct-horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now()
	users := &memUsers{users: []model.User{
		{ID: 1, Email: "desk@hotel.test", PasswordHash: hash, IsActive: true, EmailConfirmedAt: &now},
	}}
	svc := identity.NewService(users, &memTokens{rows: map[string]*memToken{}}, nil, identity.Options{
		Secret:         "registry-secret",
		AccessTTL:      time.Minute,
		RefreshTTLDays: 1,
		BcryptCost:     bcrypt.MinCost,
	}, nil)
	profiles := newFakeProfiles()
	return NewRegistry(svc, profiles, time.Second, profileTTL, nil), svc, profiles
}

func TestRegistryLoginRestoreLogout(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	ctx := context.Background()

	sess, mgr, err := reg.Login(ctx, "desk@hotel.test", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s := settle(t, mgr); s.Phase != PhaseReady || s.Profile.Role != model.RoleHotelAdmin {
		t.Fatalf("unexpected state %+v", s)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one registered session, got %d", reg.Len())
	}

	restored, err := reg.Restore(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != mgr {
		t.Fatal("requests of one session must share its manager")
	}

	if err := reg.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatal("sign-out must unregister the session")
	}
	if mgr.State().Phase != PhaseIdle {
		t.Fatalf("manager must be signed out, got %v", mgr.State().Phase)
	}
	if _, err := reg.Restore(ctx, sess.AccessToken); !errors.Is(err, identity.ErrInvalidSession) {
		t.Fatalf("revoked token must not restore, got %v", err)
	}
}

func TestRegistryLoginFailure(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	_, _, err := reg.Login(context.Background(), "desk@hotel.test", "wrong-horse")
	if identity.KindOf(err) != identity.KindInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatal("failed login must not register a session")
	}
}

func TestRegistryRestoreUnseenSession(t *testing.T) {
	reg, svc, profiles := newTestRegistry(t, 0)
	ctx := context.Background()
	sess, err := svc.SignIn(ctx, "desk@hotel.test", "correct-horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	mgr, err := reg.Restore(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if s := settle(t, mgr); s.Phase != PhaseReady {
		t.Fatalf("unexpected state %+v", s)
	}
	if profiles.callCount() != 1 {
		t.Fatalf("expected one profile lookup, got %d", profiles.callCount())
	}
}

func TestRegistryRefreshKeepsManager(t *testing.T) {
	reg, _, profiles := newTestRegistry(t, 0)
	ctx := context.Background()
	sess, mgr, err := reg.Login(ctx, "desk@hotel.test", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	settle(t, mgr)
	calls := profiles.callCount()

	next, err := reg.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.ID != sess.ID {
		t.Fatal("refresh must stay within the session")
	}
	if got, _ := reg.Lookup(sess.ID); got != mgr || mgr.State().Phase != PhaseReady {
		t.Fatal("refresh must keep the registered, ready manager")
	}
	if profiles.callCount() != calls {
		t.Fatal("refresh must not refetch the profile")
	}
}

func TestRegistrySweep(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	_, mgr, err := reg.Login(context.Background(), "desk@hotel.test", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	settle(t, mgr)
	if n := reg.Sweep(time.Now()); n != 0 {
		t.Fatalf("live session swept: %d", n)
	}
	if n := reg.Sweep(time.Now().Add(48 * time.Hour)); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	if reg.Len() != 0 {
		t.Fatal("registry must be empty after sweep")
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (f *fakeProfiles) set(id uint64, p *model.Profile, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p == nil {
		delete(f.profiles, id)
	} else {
		f.profiles[id] = p
	}
	if err == nil {
		delete(f.errs, id)
	} else {
		f.errs[id] = err
	}
}

func TestRegistryRetriesFailedProfileLookup(t *testing.T) {
	reg, _, profiles := newTestRegistry(t, 0)
	ctx := context.Background()
	hotel := &model.Profile{ID: 1, Role: model.RoleHotelAdmin}
	profiles.set(1, hotel, errors.New("connection reset"))

	sess, mgr, err := reg.Login(ctx, "desk@hotel.test", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s := settle(t, mgr); s.Phase != PhaseError || s.Err != "connection reset" {
		t.Fatalf("unexpected state %+v", s)
	}

	profiles.set(1, hotel, nil)
	restored, err := reg.Restore(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != mgr {
		t.Fatal("retry must reuse the registered manager")
	}
	if s := settle(t, restored); s.Phase != PhaseReady || s.Profile.Role != model.RoleHotelAdmin {
		t.Fatalf("failed lookup was not retried: %+v", s)
	}
	if got := profiles.callCount(); got != 2 {
		t.Fatalf("expected two profile lookups, got %d", got)
	}

	if _, err := reg.Restore(ctx, sess.AccessToken); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := profiles.callCount(); got != 2 {
		t.Fatalf("a ready profile must not be refetched without a ttl, got %d lookups", got)
	}
}

func TestRegistryMissingProfileWaitsForTTL(t *testing.T) {
	reg, _, profiles := newTestRegistry(t, 5*time.Minute)
	clock := &testClock{t: time.Now()}
	reg.now = clock.now
	ctx := context.Background()
	profiles.set(1, nil, nil)

	sess, mgr, err := reg.Login(ctx, "desk@hotel.test", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s := settle(t, mgr); s.Phase != PhaseError || s.Err != msgProfileNotFound {
		t.Fatalf("unexpected state %+v", s)
	}

	profiles.set(1, &model.Profile{ID: 1, Role: model.RoleHotelAdmin}, nil)
	if _, err := reg.Restore(ctx, sess.AccessToken); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if s := settle(t, mgr); s.Phase != PhaseError || profiles.callCount() != 1 {
		t.Fatalf("a missing profile is not retried before the ttl: %+v, %d lookups", s, profiles.callCount())
	}

	clock.advance(6 * time.Minute)
	if _, err := reg.Restore(ctx, sess.AccessToken); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if s := settle(t, mgr); s.Phase != PhaseReady {
		t.Fatalf("profile created later must be picked up after the ttl: %+v", s)
	}
}

func TestRegistryRemovedProfileLosesAccess(t *testing.T) {
	reg, _, profiles := newTestRegistry(t, 5*time.Minute)
	clock := &testClock{t: time.Now()}
	reg.now = clock.now
	ctx := context.Background()

	sess, mgr, err := reg.Login(ctx, "desk@hotel.test", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s := settle(t, mgr); s.Phase != PhaseReady {
		t.Fatalf("unexpected state %+v", s)
	}
	profiles.set(1, nil, nil)

	clock.advance(time.Minute)
	if _, err := reg.Restore(ctx, sess.AccessToken); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !mgr.HasRole(model.RoleHotelAdmin) || profiles.callCount() != 1 {
		t.Fatalf("profile within its ttl must be reused, %d lookups", profiles.callCount())
	}

	clock.advance(5 * time.Minute)
	restored, err := reg.Restore(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	s := settle(t, restored)
	if s.Phase != PhaseError || s.Err != msgProfileNotFound || s.Profile != nil {
		t.Fatalf("removed profile must settle as missing: %+v", s)
	}
	if restored.HasRole(model.RoleHotelAdmin) {
		t.Fatal("removed profile must not keep its role")
	}
}
