package cache

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/DigestAPI/internal/data/redisStore"
)

// RedisKV backs the result cache with a dedicated Redis DB.
type RedisKV struct {
	store *redisStore.Store
}

func NewRedisKV(store *redisStore.Store) *RedisKV {
	return &RedisKV{store: store}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.store.Get(ctx, key)
	if r.store.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.store.Set(ctx, key, value, ttl)
}

// MemoryKV is the offline fallback. Expiry is lazy: an expired entry is
// evicted on the next Get that touches it.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.now().After(entry.expires) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: m.now().Add(ttl)}
	return nil
}
