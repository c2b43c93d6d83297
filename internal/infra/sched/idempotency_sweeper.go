package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"origami-connector/internal/infra/metrics"
)

// Purger removes expired entries from a bucket.
type Purger interface {
	PurgeExpired(ctx context.Context, bucket string) (int64, error)
}

// IdempotencySweeper periodically deletes expired idempotency entries from
// stores that do not expire keys on their own.
type IdempotencySweeper struct {
	interval time.Duration
	bucket   string
	store    Purger
	log      *zerolog.Logger
}

func NewIdempotencySweeper(interval time.Duration, bucket string, store Purger, logger *zerolog.Logger) *IdempotencySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "IdempotencySweeper").Logger()
	return &IdempotencySweeper{interval: interval, bucket: bucket, store: store, log: &l}
}

func (w *IdempotencySweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting idempotency sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping idempotency sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single purge bounded by a timeout.
func (w *IdempotencySweeper) SweepOnce(ctx context.Context) int64 {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.store.PurgeExpired(runCtx, w.bucket)
	if err != nil {
		w.log.Error().Err(err).Msg("idempotency sweep failed")
		return 0
	}
	if n > 0 {
		metrics.AddIdempotencyPurged(n)
		w.log.Info().Int64("count", n).Msg("expired idempotency entries purged")
	}
	return n
}
