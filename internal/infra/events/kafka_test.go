//go:build !integration

package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"origami-connector/internal/domain/model"
	"origami-connector/internal/infra/logging"
)

type recordingWriter struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	err     error
	release chan struct{}
	closed  bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.release != nil {
		select {
		case <-w.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestProducer_PublishesKeyedEnvelope(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, logging.Nop())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	rec := model.AuthorizationRecord{PaymentID: "P1", Status: model.AuthorizationApproved, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, p.PublishStatusChange(context.Background(), rec))
	require.NoError(t, p.Close())

	msgs := w.written()
	require.Len(t, msgs, 1)
	require.Equal(t, "P1", string(msgs[0].Key))
	require.True(t, w.closed)

	var env Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	require.Equal(t, EventStatusChanged, env.EventType)
	require.Equal(t, "P1", env.AggregateID)
	require.Equal(t, model.AuthorizationApproved, env.Data.Status)
	require.True(t, env.OccurredAt.Equal(at))
}

func TestProducer_WriteErrorStaysInBackground(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := newProducer(w, logging.Nop())
	err := p.PublishStatusChange(context.Background(), model.AuthorizationRecord{PaymentID: "P1", Status: model.AuthorizationDenied})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.Empty(t, w.written())
}

func TestProducer_StalledBrokerDoesNotBlockCaller(t *testing.T) {
	w := &recordingWriter{release: make(chan struct{})}
	p := newProducer(w, logging.Nop())
	rec := model.AuthorizationRecord{PaymentID: "P2", Status: model.AuthorizationPending}

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.PublishStatusChange(context.Background(), rec))
	}
	require.Less(t, time.Since(start), time.Second)

	// fill the queue behind the stalled write
	var lastErr error
	for i := 0; i < queueSize+2 && lastErr == nil; i++ {
		lastErr = p.PublishStatusChange(context.Background(), rec)
	}
	require.ErrorIs(t, lastErr, ErrQueueFull)

	close(w.release)
	require.NoError(t, p.Close())
	require.NotEmpty(t, w.written())
}

func TestProducer_PublishAfterClose(t *testing.T) {
	p := newProducer(&recordingWriter{}, logging.Nop())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Error(t, p.PublishStatusChange(context.Background(), model.AuthorizationRecord{PaymentID: "P3"}))
}
