// File: internal/usecase/idempotency_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/repository"
	"origami-connector/internal/infra/metrics"
)

// Compile-time check
var _ IdempotencyUseCase = (*idempotencyUC)(nil)

// IdempotencyUseCase remembers responses by Idempotency-Key for a bounded time.
type IdempotencyUseCase interface {
	// Lookup returns the stored entry for (scope, key), or nil on a miss.
	// A stored entry whose request hash differs yields domain.ErrConflict.
	Lookup(ctx context.Context, scope, key, requestHash string) (*model.IdempotencyEntry, error)
	Remember(ctx context.Context, scope, key, requestHash string, status int, body []byte) error
}

type idempotencyUC struct {
	repo repository.IdempotencyRepository
	ttl  time.Duration
	now  func() time.Time
	log  *zerolog.Logger
}

func NewIdempotencyUseCase(repo repository.IdempotencyRepository, ttl time.Duration, logger *zerolog.Logger) *idempotencyUC {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &idempotencyUC{repo: repo, ttl: ttl, now: time.Now, log: logger}
}

func (u *idempotencyUC) Lookup(ctx context.Context, scope, key, requestHash string) (*model.IdempotencyEntry, error) {
	e, err := u.repo.Get(ctx, scope, key)
	if err != nil {
		return nil, domain.Dependency("load idempotency entry", err)
	}
	if e == nil {
		metrics.IncIdempotency(scope, "miss")
		return nil, nil
	}
	if e.RequestHash != requestHash {
		metrics.IncIdempotency(scope, "conflict")
		return nil, fmt.Errorf("%w: idempotency key reused with a different request", domain.ErrConflict)
	}
	metrics.IncIdempotency(scope, "replay")
	return e, nil
}

func (u *idempotencyUC) Remember(ctx context.Context, scope, key, requestHash string, status int, body []byte) error {
	entry := &model.IdempotencyEntry{
		Scope:       scope,
		Key:         key,
		RequestHash: requestHash,
		StatusCode:  status,
		Response:    append([]byte(nil), body...),
		CreatedAt:   u.now().UTC(),
	}
	if err := u.repo.Save(ctx, entry, u.ttl); err != nil {
		return domain.Dependency("save idempotency entry", err)
	}
	metrics.IncIdempotency(scope, "stored")
	return nil
}
