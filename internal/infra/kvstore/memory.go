package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/ports/repository"
)

var _ repository.ExpiringKVStore = (*Memory)(nil)

// Memory is a process-local KV store for -dev runs and tests. Values are kept
// as encoded JSON so callers never share mutable state with the store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{items: map[string]memItem{}, now: time.Now}
}

func memKey(bucket, key string) string { return bucket + ":" + key }

func (m *Memory) SaveJSON(ctx context.Context, bucket, key string, value any) error {
	return m.SaveJSONWithTTL(ctx, bucket, key, value, 0)
}

func (m *Memory) SaveJSONWithTTL(ctx context.Context, bucket, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	it := memItem{data: data}
	if ttl > 0 {
		it.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[memKey(bucket, key)] = it
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetJSON(ctx context.Context, bucket, key string, out any, nullIfNotFound bool) (bool, error) {
	m.mu.RLock()
	it, ok := m.items[memKey(bucket, key)]
	m.mu.RUnlock()
	if ok && !it.expiresAt.IsZero() && !m.now().Before(it.expiresAt) {
		ok = false
	}
	if !ok {
		if nullIfNotFound {
			return false, nil
		}
		return false, domain.ErrNotFound
	}
	if err := json.Unmarshal(it.data, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PurgeExpired drops expired entries of bucket.
func (m *Memory) PurgeExpired(ctx context.Context, bucket string) (int64, error) {
	prefix := bucket + ":"
	now := m.now()
	var n int64
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, it := range m.items {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix && !it.expiresAt.IsZero() && !now.Before(it.expiresAt) {
			delete(m.items, k)
			n++
		}
	}
	return n, nil
}
