package kvstore

import (
	"context"
	"time"

	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo stores replayable responses with a TTL so the key space
// cannot grow for the life of the process.
type IdempotencyRepo struct {
	kv repository.ExpiringKVStore
}

func NewIdempotencyRepo(kv repository.ExpiringKVStore) *IdempotencyRepo {
	return &IdempotencyRepo{kv: kv}
}

func idemKey(scope, key string) string { return scope + "/" + key }

func (r *IdempotencyRepo) Get(ctx context.Context, scope, key string) (*model.IdempotencyEntry, error) {
	var e model.IdempotencyEntry
	found, err := r.kv.GetJSON(ctx, repository.BucketIdempotency, idemKey(scope, key), &e, true)
	if err != nil || !found {
		return nil, err
	}
	return &e, nil
}

func (r *IdempotencyRepo) Save(ctx context.Context, entry *model.IdempotencyEntry, ttl time.Duration) error {
	return r.kv.SaveJSONWithTTL(ctx, repository.BucketIdempotency, idemKey(entry.Scope, entry.Key), entry, ttl)
}
