package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/adapter"
	"origami-connector/internal/infra/metrics"
)

var (
	_ adapter.EventPublisher = (*Producer)(nil)
	_ adapter.EventPublisher = NoopPublisher{}
)

const (
	EventStatusChanged = "payment.authorization.status_changed"
	EventVersion       = "1"
)

// Envelope is the event schema published for every persisted status change.
type Envelope struct {
	EventType    string                    `json:"eventType"`
	EventVersion string                    `json:"eventVersion"`
	OccurredAt   time.Time                 `json:"occurredAt"`
	AggregateID  string                    `json:"aggregateId"`
	Data         model.AuthorizationRecord `json:"data"`
}

const (
	queueSize      = 1024
	publishTimeout = 10 * time.Second
)

// ErrQueueFull is returned when the publish queue cannot take another event.
var ErrQueueFull = errors.New("status event queue full")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes status changes keyed by payment id, so every payment's
// events stay ordered within one partition. PublishStatusChange only enqueues;
// a single background loop writes to the broker.
type Producer struct {
	w     messageWriter
	now   func() time.Time
	log   *zerolog.Logger
	queue chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, logger *zerolog.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  3,
		WriteTimeout: 5 * time.Second,
	}, logger)
}

func newProducer(w messageWriter, logger *zerolog.Logger) *Producer {
	l := logger.With().Str("component", "EventProducer").Logger()
	p := &Producer{
		w:     w,
		now:   time.Now,
		log:   &l,
		queue: make(chan kafka.Message, queueSize),
		done:  make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Producer) loop() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.w.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			metrics.IncEventPublished("error")
			p.log.Warn().Err(err).Str("payment_id", string(msg.Key)).Msg("status event not published")
			continue
		}
		metrics.IncEventPublished("ok")
	}
}

// PublishStatusChange enqueues the event and returns without waiting for the broker.
func (p *Producer) PublishStatusChange(ctx context.Context, rec model.AuthorizationRecord) error {
	val, err := json.Marshal(Envelope{
		EventType:    EventStatusChanged,
		EventVersion: EventVersion,
		OccurredAt:   p.now().UTC(),
		AggregateID:  rec.PaymentID,
		Data:         rec,
	})
	if err != nil {
		metrics.IncEventPublished("error")
		return fmt.Errorf("encode status event: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.IncEventPublished("dropped")
		return errors.New("status event producer closed")
	}
	select {
	case p.queue <- kafka.Message{Key: []byte(rec.PaymentID), Value: val}:
		return nil
	default:
		metrics.IncEventPublished("dropped")
		return ErrQueueFull
	}
}

// Close drains queued events and closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChange(context.Context, model.AuthorizationRecord) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
