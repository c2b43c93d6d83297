package repository

import (
	"context"
	"time"

	"origami-connector/internal/domain/model"
)

// IdempotencyRepository stores replayable responses keyed by (scope, key).
// Get returns (nil, nil) on a miss or after the entry expired.
type IdempotencyRepository interface {
	Get(ctx context.Context, scope, key string) (*model.IdempotencyEntry, error)
	Save(ctx context.Context, entry *model.IdempotencyEntry, ttl time.Duration) error
}
