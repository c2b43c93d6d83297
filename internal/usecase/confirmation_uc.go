// File: internal/usecase/confirmation_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/adapter"
	"origami-connector/internal/domain/ports/repository"
	"origami-connector/internal/infra/logging"
	"origami-connector/internal/infra/metrics"
)

// Compile-time check
var _ ConfirmationUseCase = (*confirmationUC)(nil)

// ConfirmationUseCase records the out-of-band decision for a payment.
// It acknowledges the caller and never calls the gateway back itself.
type ConfirmationUseCase interface {
	// Authenticate checks the confirm token when tokens are enabled.
	Authenticate(paymentID, token string) error
	Confirm(ctx context.Context, paymentID string, decision model.AuthorizationStatus, message string) (*model.ConfirmAck, error)
}

type confirmationUC struct {
	repo   repository.AuthorizationRepository
	events adapter.EventPublisher
	tokens adapter.ConfirmTokens
	now    func() time.Time
	log    *zerolog.Logger
}

func NewConfirmationUseCase(repo repository.AuthorizationRepository, events adapter.EventPublisher, logger *zerolog.Logger) *confirmationUC {
	return &confirmationUC{repo: repo, events: events, now: time.Now, log: logger}
}

func (u *confirmationUC) SetConfirmTokens(t adapter.ConfirmTokens) { u.tokens = t }

func (u *confirmationUC) SetClock(now func() time.Time) { u.now = now }

func (u *confirmationUC) Authenticate(paymentID, token string) error {
	if u.tokens == nil {
		return nil
	}
	return u.tokens.Verify(token, paymentID)
}

// Confirm merges decision onto the stored record, creating it when absent.
// A record that is already terminal keeps its status and is not rewritten.
func (u *confirmationUC) Confirm(ctx context.Context, paymentID string, decision model.AuthorizationStatus, message string) (*model.ConfirmAck, error) {
	defer logging.TraceDuration(u.log, "ConfirmationUC.Confirm")()

	if err := (model.ConfirmRequest{PaymentID: paymentID, Status: decision}).Validate(); err != nil {
		return nil, err
	}
	ctx = logging.WithPaymentID(ctx, paymentID)
	log := logging.With(ctx, u.log)

	rec, err := u.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, domain.Dependency("load authorization", err)
	}

	if rec != nil && rec.Status.Terminal() {
		result := "duplicate"
		if rec.Status != decision {
			result = "ignored_terminal"
			log.Warn().
				Str("status", string(rec.Status)).
				Str("decision", string(decision)).
				Msg("confirm on terminal record ignored")
		}
		metrics.IncConfirmation(string(decision), result)
		return &model.ConfirmAck{OK: true, PaymentID: paymentID, Status: rec.Status}, nil
	}

	now := u.now().UTC()
	if rec == nil {
		log.Warn().Msg("confirm for unknown payment; creating record")
		rec = &model.AuthorizationRecord{PaymentID: paymentID, CreatedAt: now}
	}
	rec.Status = decision
	rec.Message = message
	rec.UpdatedAt = now

	if err := u.repo.Save(ctx, rec); err != nil {
		return nil, domain.Dependency("save authorization", err)
	}
	metrics.IncConfirmation(string(decision), "applied")
	metrics.IncAuthorization(string(decision), "confirm")
	publishStatus(ctx, u.events, rec, u.log)

	log.Info().Str("status", string(decision)).Msg("payment decision confirmed")
	return &model.ConfirmAck{OK: true, PaymentID: paymentID, Status: decision}, nil
}
