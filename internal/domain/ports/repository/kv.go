package repository

import (
	"context"
	"time"
)

// KVStore is the durable JSON key-value store shared by all replicas.
// Records live in buckets; every read and write is keyed.
type KVStore interface {
	SaveJSON(ctx context.Context, bucket, key string, value any) error
	// GetJSON decodes the stored value into out and reports whether it existed.
	// With nullIfNotFound a missing key is (false, nil); otherwise it is domain.ErrNotFound.
	GetJSON(ctx context.Context, bucket, key string, out any, nullIfNotFound bool) (bool, error)
}

// ExpiringKVStore is a KVStore that can also drop values after a TTL.
type ExpiringKVStore interface {
	KVStore
	SaveJSONWithTTL(ctx context.Context, bucket, key string, value any, ttl time.Duration) error
}

const (
	BucketAuthorizations = "origami-payment-authorizations"
	BucketAuth           = "origami-auth"
	BucketIdempotency    = "origami-idempotency"

	KeyAccessToken = "access-token"
)
