// Package scratch is the local durable scratch store: named collections
// that are read and written as whole JSON documents.  There is no schema and
// no migration; a collection that fails to decode is an error.
package scratch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Collection names used by the service.
const (
	Rooms    = "rooms"
	Bookings = "bookings"
)

// Store reads and writes whole collections.  Update applies fn atomically
// with respect to other Update calls on the same collection; raw is nil when
// the collection does not exist yet.
type Store interface {
	Get(ctx context.Context, collection string) ([]byte, error)
	Put(ctx context.Context, collection string, raw []byte) error
	Update(ctx context.Context, collection string, fn func(raw []byte) ([]byte, error)) error
}

// Load decodes a collection into a slice.  A missing collection is empty.
func Load[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	raw, err := s.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	return decode[T](collection, raw)
}

// Replace overwrites a collection.
func Replace[T any](ctx context.Context, s Store, collection string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.Put(ctx, collection, raw)
}

// Append adds one item to a collection.
func Append[T any](ctx context.Context, s Store, collection string, item T) error {
	return s.Update(ctx, collection, func(raw []byte) ([]byte, error) {
		items, err := decode[T](collection, raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(append(items, item))
	})
}

func decode[T any](collection string, raw []byte) ([]T, error) {
	out := []T{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("scratch %s: %w", collection, err)
	}
	return out, nil
}

// RedisStore keeps each collection in one Redis string.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "hotel:scratch"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(collection string) string { return s.prefix + ":" + collection }

func (s *RedisStore) Get(ctx context.Context, collection string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, s.key(collection)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

func (s *RedisStore) Put(ctx context.Context, collection string, raw []byte) error {
	return s.rdb.Set(ctx, s.key(collection), raw, 0).Err()
}

const maxUpdateRetries = 10

// Update runs fn inside an optimistic WATCH/MULTI transaction and retries
// when another writer got there first.
func (s *RedisStore) Update(ctx context.Context, collection string, fn func(raw []byte) ([]byte, error)) error {
	key := s.key(collection)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next, err := fn(raw)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("scratch %s: too much contention", collection)
}

// MemoryStore is an in-process Store for tests and for running without Redis.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{data: map[string][]byte{}} }

func (m *MemoryStore) Get(_ context.Context, collection string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[collection]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), raw...), nil
}

func (m *MemoryStore) Put(_ context.Context, collection string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[collection] = append([]byte(nil), raw...)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection string, fn func(raw []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.data[collection])
	if err != nil {
		return err
	}
	m.data[collection] = next
	return nil
}
