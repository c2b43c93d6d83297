package adapter

import (
	"context"
	"time"

	"origami-connector/internal/domain/model"
)

// CallbackDispatcher delivers a final authorization result to the gateway.
// Delivery is fire-and-forget: no retries, the gateway owns those.
type CallbackDispatcher interface {
	Dispatch(ctx context.Context, callbackURL string, resp model.AuthorizationResponse) error
}

// Scheduler runs a task once after a delay without blocking the caller.
type Scheduler interface {
	After(delay time.Duration, name string, task func(ctx context.Context) error) (taskID string)
}

// EventPublisher announces persisted status changes to other systems.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, rec model.AuthorizationRecord) error
	Close() error
}

// ConfirmTokens mints and checks the token that binds a confirm call to a payment.
type ConfirmTokens interface {
	Mint(paymentID string) (string, error)
	Verify(token, paymentID string) error
}
