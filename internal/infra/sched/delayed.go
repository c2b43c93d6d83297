package sched

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"origami-connector/internal/domain/ports/adapter"
	"origami-connector/internal/infra/metrics"
	"origami-connector/internal/infra/worker"
)

var _ adapter.Scheduler = (*DelayedScheduler)(nil)

// Submitter is the part of worker.Pool the scheduler needs.
type Submitter interface {
	Submit(task worker.Task) error
}

// DelayedScheduler fires one-shot tasks after a delay on a worker pool.
// Pending tasks live in memory only and are lost on restart.
type DelayedScheduler struct {
	pool Submitter
	log  *zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewDelayedScheduler(pool Submitter, logger *zerolog.Logger) *DelayedScheduler {
	l := logger.With().Str("component", "DelayedScheduler").Logger()
	return &DelayedScheduler{pool: pool, log: &l, timers: map[string]*time.Timer{}}
}

// After schedules task to run once after delay and returns its id.
// After Stop, tasks are dropped and the returned id is still unique.
func (s *DelayedScheduler) After(delay time.Duration, name string, task func(ctx context.Context) error) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		metrics.IncScheduledTask("dropped")
		s.log.Warn().Str("task", name).Msg("scheduler stopped; task dropped")
		return id
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id, name, task) })
	metrics.IncScheduledTask("scheduled")
	s.log.Debug().Str("task", name).Str("task_id", id).Dur("delay", delay).Msg("task scheduled")
	return id
}

func (s *DelayedScheduler) fire(id, name string, task func(ctx context.Context) error) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	err := s.pool.Submit(func(ctx context.Context) error {
		if err := task(ctx); err != nil {
			metrics.IncScheduledTask("failed")
			s.log.Error().Err(err).Str("task", name).Str("task_id", id).Msg("scheduled task failed")
			return nil
		}
		metrics.IncScheduledTask("ran")
		return nil
	})
	if err != nil {
		metrics.IncScheduledTask("dropped")
		s.log.Error().Err(err).Str("task", name).Str("task_id", id).Msg("could not submit scheduled task")
	}
}

// Pending returns how many tasks are waiting for their delay to elapse.
func (s *DelayedScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer. Tasks already handed to the pool still run.
func (s *DelayedScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
