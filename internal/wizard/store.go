package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrDraftNotFound is returned for unknown or expired drafts.
	ErrDraftNotFound = errors.New("walk-in draft not found")
	// ErrSubmitInProgress is returned when another request holds the submit
	// claim of a draft.
	ErrSubmitInProgress = errors.New("walk-in submission already in progress")
)

// Store keeps drafts between requests.  Claim takes the single submit
// claim of a draft and reports false while another holder has it; Release
// gives it back.  Delete drops the claim with the draft.
type Store interface {
	Get(ctx context.Context, id string) (*Draft, error)
	Save(ctx context.Context, d *Draft) error
	Delete(ctx context.Context, id string) error
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// RedisStore keeps each draft as a JSON string that expires ttl after its
// last save.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "hotel:walkin", ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }
func (s *RedisStore) claimKey(id string) string { return s.prefix + ":" + id + ":submit" }

func (s *RedisStore) Get(ctx context.Context, id string) (*Draft, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &d, nil
}

func (s *RedisStore) Save(ctx context.Context, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(d.ID), raw, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id), s.claimKey(id)).Err()
}

// Claim uses SET NX so exactly one caller wins.  The claim expires with the
// draft so a crashed holder cannot block it forever.
func (s *RedisStore) Claim(ctx context.Context, id string) (bool, error) {
	return s.rdb.SetNX(ctx, s.claimKey(id), "1", s.ttl).Result()
}

func (s *RedisStore) Release(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.claimKey(id)).Err()
}

// MemoryStore is a process-local Store for tests and Redis-less runs.
// Drafts are copied through JSON so callers never share state with it.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string][]byte
	claims map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: map[string][]byte{}, claims: map[string]bool{}}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Draft, error) {
	m.mu.Lock()
	raw, ok := m.drafts[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrDraftNotFound
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *MemoryStore) Save(_ context.Context, d *Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.drafts[d.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.drafts, id)
	delete(m.claims, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[id] {
		return false, nil
	}
	m.claims[id] = true
	return true, nil
}

func (m *MemoryStore) Release(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.claims, id)
	m.mu.Unlock()
	return nil
}
