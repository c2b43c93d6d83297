package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/ports/repository"
)

var _ repository.ExpiringKVStore = (*KVStore)(nil)

// KVStore keeps JSON documents under "<bucket>:<key>".
// A single SET replaces the whole value, so a reader never sees a partial write.
type KVStore struct {
	client RedisClient
}

func NewKVStore(client RedisClient) *KVStore {
	return &KVStore{client: client}
}

func kvKey(bucket, key string) string {
	return fmt.Sprintf("%s:%s", bucket, key)
}

func (s *KVStore) SaveJSON(ctx context.Context, bucket, key string, value any) error {
	return s.SaveJSONWithTTL(ctx, bucket, key, value, 0)
}

func (s *KVStore) SaveJSONWithTTL(ctx context.Context, bucket, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return s.client.Set(ctx, kvKey(bucket, key), data, ttl)
}

func (s *KVStore) GetJSON(ctx context.Context, bucket, key string, out any, nullIfNotFound bool) (bool, error) {
	data, err := s.client.Get(ctx, kvKey(bucket, key))
	if errors.Is(err, Nil) {
		if nullIfNotFound {
			return false, nil
		}
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}
