// File: internal/usecase/authorization_uc.go
package usecase

import (
	"context"
	"encoding/json"
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
var _ AuthorizationUseCase = (*authorizationUC)(nil)

const (
	DelayToCancelSeconds = 86400

	codeOK          = "ok"
	codeApproved    = "0000"
	codeDenied      = "denied"
	codePending     = "pending"
	codeAsync       = "2000-ASYNC"
	codeRefundDeny  = "refund-manually"
	codeSettleDeny  = "settle-manually"
	canceledMessage = "canceled"

	fixtureDeniedMessage = "Denied by test suite scenario"
)

// Test-suite card numbers and the outcome each one drives.
const (
	CardSyncApproved  = "4444333322221111"
	CardSyncDenied    = "4444333322221112"
	CardAsyncApproved = "4222222222222224"
	CardAsyncDenied   = "4222222222222225"
)

// AuthorizationUseCase drives the payment authorization state machine.
type AuthorizationUseCase interface {
	// Authorize is idempotent per payment id: once a record exists it is
	// replayed verbatim and nothing is re-evaluated.
	Authorize(ctx context.Context, req model.AuthorizationRequest) (*model.AuthorizationResponse, error)
	// Cancel always approves and marks the record canceled.
	Cancel(ctx context.Context, req model.CancellationRequest) (*model.CancellationResponse, error)
	// Refund and Settle always deny.
	Refund(ctx context.Context, req model.RefundRequest) (*model.RefundResponse, error)
	Settle(ctx context.Context, req model.SettlementRequest) (*model.SettlementResponse, error)
}

// AuthorizationOptions holds the deployment constants echoed to the gateway.
type AuthorizationOptions struct {
	AppName         string // vendor.name of the payment app; empty omits paymentAppData
	Acquirer        string
	TestSuite       bool
	AsyncDelay      time.Duration
	EligibilityPath string
	ConfirmPath     string
}

type authorizationUC struct {
	repo      repository.AuthorizationRepository
	scheduler adapter.Scheduler
	callbacks adapter.CallbackDispatcher
	events    adapter.EventPublisher
	tokens    adapter.ConfirmTokens
	opts      AuthorizationOptions
	now       func() time.Time
	dev       bool
	log       *zerolog.Logger
}

func NewAuthorizationUseCase(
	repo repository.AuthorizationRepository,
	scheduler adapter.Scheduler,
	callbacks adapter.CallbackDispatcher,
	events adapter.EventPublisher,
	opts AuthorizationOptions,
	dev bool,
	logger *zerolog.Logger,
) *authorizationUC {
	if opts.Acquirer == "" {
		opts.Acquirer = "OrigamiPay"
	}
	if opts.AsyncDelay <= 0 {
		opts.AsyncDelay = 15 * time.Second
	}
	return &authorizationUC{
		repo:      repo,
		scheduler: scheduler,
		callbacks: callbacks,
		events:    events,
		opts:      opts,
		now:       time.Now,
		dev:       dev,
		log:       logger,
	}
}

// SetConfirmTokens enables signed confirm tokens in the payment app payload.
func (u *authorizationUC) SetConfirmTokens(t adapter.ConfirmTokens) { u.tokens = t }

func (u *authorizationUC) SetClock(now func() time.Time) { u.now = now }

func (u *authorizationUC) Authorize(ctx context.Context, req model.AuthorizationRequest) (*model.AuthorizationResponse, error) {
	defer logging.TraceDuration(u.log, "AuthorizationUC.Authorize")()

	if req.PaymentID == "" {
		return nil, domain.NewValidationError("paymentId", "paymentId is required")
	}
	ctx = logging.WithPaymentID(ctx, req.PaymentID)
	log := logging.With(ctx, u.log)

	existing, err := u.repo.Get(ctx, req.PaymentID)
	if err != nil {
		return nil, domain.Dependency("load authorization", err)
	}
	if existing != nil {
		metrics.IncAuthorizationReplay(string(existing.Status))
		log.Debug().Str("status", string(existing.Status)).Msg("authorization replayed from store")
		return u.replay(existing), nil
	}

	if u.opts.TestSuite {
		if resp, handled, err := u.authorizeFixture(ctx, req); handled {
			return resp, err
		}
	}
	return u.authorizePending(ctx, req)
}

func (u *authorizationUC) replay(rec *model.AuthorizationRecord) *model.AuthorizationResponse {
	code := codeOK
	if rec.Status == model.AuthorizationDenied {
		code = codeDenied
	}
	return u.response(rec, code)
}

func (u *authorizationUC) response(rec *model.AuthorizationRecord, code string) *model.AuthorizationResponse {
	var msg *string
	if rec.Message != "" {
		m := rec.Message
		msg = &m
	}
	return &model.AuthorizationResponse{
		PaymentID:       rec.PaymentID,
		Status:          rec.Status.Gateway(),
		AuthorizationID: rec.AuthorizationID,
		TID:             rec.TID,
		NSU:             rec.NSU,
		Acquirer:        u.opts.Acquirer,
		Code:            code,
		Message:         msg,
		DelayToCancel:   DelayToCancelSeconds,
	}
}

func (u *authorizationUC) newRecord(req model.AuthorizationRequest, status model.AuthorizationStatus, suffix, message string) *model.AuthorizationRecord {
	now := u.now().UTC()
	id := req.PaymentID
	return &model.AuthorizationRecord{
		PaymentID:       id,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
		CallbackURL:     req.CallbackURL,
		AuthorizationID: "AUT-" + id + suffix,
		TID:             "TID-" + id + suffix,
		NSU:             "NSU-" + id + suffix,
		Message:         message,
	}
}

// authorizeFixture handles the deterministic test-suite cards. handled is
// false for any other card so the production path takes over.
func (u *authorizationUC) authorizeFixture(ctx context.Context, req model.AuthorizationRequest) (*model.AuthorizationResponse, bool, error) {
	switch req.CardNumber() {
	case CardSyncApproved:
		rec := u.newRecord(req, model.AuthorizationApproved, "", "")
		if err := u.save(ctx, rec, "fixture"); err != nil {
			return nil, true, err
		}
		return u.response(rec, codeApproved), true, nil

	case CardSyncDenied:
		rec := u.newRecord(req, model.AuthorizationDenied, "", fixtureDeniedMessage)
		if err := u.save(ctx, rec, "fixture"); err != nil {
			return nil, true, err
		}
		return u.response(rec, codeDenied), true, nil

	case CardAsyncApproved, CardAsyncDenied:
		final := model.AuthorizationApproved
		if req.CardNumber() == CardAsyncDenied {
			final = model.AuthorizationDenied
		}
		rec := u.newRecord(req, model.AuthorizationPending, "-ASYNC", "")
		if err := u.save(ctx, rec, "async"); err != nil {
			return nil, true, err
		}
		u.scheduleFinal(req, final)
		return u.response(rec, codeAsync), true, nil
	}
	return nil, false, nil
}

// scheduleFinal completes an async fixture after the configured delay. The
// task persists the final status and calls back the gateway; failures are
// logged and dropped.
func (u *authorizationUC) scheduleFinal(req model.AuthorizationRequest, final model.AuthorizationStatus) {
	paymentID := req.PaymentID
	u.scheduler.After(u.opts.AsyncDelay, "async-final:"+paymentID, func(ctx context.Context) error {
		ctx = logging.WithPaymentID(ctx, paymentID)
		log := logging.With(ctx, u.log)

		current, err := u.repo.Get(ctx, paymentID)
		if err != nil {
			log.Warn().Err(err).Msg("async final: could not load record")
		}
		if current != nil && current.Status.Terminal() {
			log.Info().Str("status", string(current.Status)).Msg("async final skipped: record already terminal")
			return nil
		}

		rec := u.newRecord(req, final, "-FINAL", "")
		if current != nil {
			rec.CreatedAt = current.CreatedAt
			if rec.CallbackURL == "" {
				rec.CallbackURL = current.CallbackURL
			}
		}
		if err := u.save(ctx, rec, "async"); err != nil {
			log.Warn().Err(err).Msg("async final: could not persist status")
		}

		code := codeApproved
		if final == model.AuthorizationDenied {
			code = codeDenied
		}
		if err := u.callbacks.Dispatch(ctx, rec.CallbackURL, *u.response(rec, code)); err != nil {
			log.Warn().Err(err).Msg("async final: callback failed")
		}
		return nil
	})
}

func (u *authorizationUC) authorizePending(ctx context.Context, req model.AuthorizationRequest) (*model.AuthorizationResponse, error) {
	cpf := model.NormalizeDigits(req.Document())
	phone := model.NormalizePhoneBR(req.Phone())

	// No pending record is persisted without its confirm token.
	var appData *model.PaymentAppData
	if u.opts.AppName != "" {
		payload := model.AppPayload{
			PaymentID:       req.PaymentID,
			CPF:             cpf,
			Phone:           phone,
			EligibilityPath: u.opts.EligibilityPath,
			ConfirmPath:     u.opts.ConfirmPath,
		}
		if u.tokens != nil {
			tok, err := u.tokens.Mint(req.PaymentID)
			if err != nil {
				return nil, domain.Dependency("mint confirm token", err)
			}
			payload.ConfirmToken = tok
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		appData = &model.PaymentAppData{AppName: u.opts.AppName, Payload: string(raw)}
	}

	rec := u.newRecord(req, model.AuthorizationPending, "-PENDING", "")
	if err := u.save(ctx, rec, "pending"); err != nil {
		return nil, err
	}

	resp := u.response(rec, codePending)
	resp.PaymentAppData = appData

	logging.With(ctx, u.log).Info().
		Str("cpf", logging.Redact(cpf, u.dev)).
		Str("phone", logging.Redact(phone, u.dev)).
		Msg("authorization pending confirmation")
	return resp, nil
}

// save persists rec and announces the change. Publishing is best effort.
func (u *authorizationUC) save(ctx context.Context, rec *model.AuthorizationRecord, path string) error {
	if err := u.repo.Save(ctx, rec); err != nil {
		return domain.Dependency("save authorization", err)
	}
	metrics.IncAuthorization(string(rec.Status), path)
	publishStatus(ctx, u.events, rec, u.log)
	return nil
}

func (u *authorizationUC) Cancel(ctx context.Context, req model.CancellationRequest) (*model.CancellationResponse, error) {
	defer logging.TraceDuration(u.log, "AuthorizationUC.Cancel")()

	if req.PaymentID == "" {
		return nil, domain.NewValidationError("paymentId", "paymentId is required")
	}
	ctx = logging.WithPaymentID(ctx, req.PaymentID)

	rec, err := u.repo.Get(ctx, req.PaymentID)
	if err != nil {
		return nil, domain.Dependency("load authorization", err)
	}
	now := u.now().UTC()
	if rec == nil {
		rec = &model.AuthorizationRecord{PaymentID: req.PaymentID, CreatedAt: now}
	}
	rec.Status = model.AuthorizationCanceled
	rec.Message = canceledMessage
	rec.UpdatedAt = now
	if err := u.save(ctx, rec, "cancel"); err != nil {
		return nil, err
	}

	id := "CXL-" + req.PaymentID
	logging.With(ctx, u.log).Info().Msg("authorization canceled")
	return &model.CancellationResponse{
		PaymentID:      req.PaymentID,
		CancellationID: &id,
		Code:           codeOK,
		Message:        "Successfully cancelled",
		RequestID:      req.RequestID,
	}, nil
}

func (u *authorizationUC) Refund(ctx context.Context, req model.RefundRequest) (*model.RefundResponse, error) {
	if req.PaymentID == "" {
		return nil, domain.NewValidationError("paymentId", "paymentId is required")
	}
	return &model.RefundResponse{
		PaymentID: req.PaymentID,
		Value:     0,
		Code:      codeRefundDeny,
		Message:   "Refund has failed due to an internal error",
		RequestID: req.RequestID,
	}, nil
}

func (u *authorizationUC) Settle(ctx context.Context, req model.SettlementRequest) (*model.SettlementResponse, error) {
	if req.PaymentID == "" {
		return nil, domain.NewValidationError("paymentId", "paymentId is required")
	}
	return &model.SettlementResponse{
		PaymentID: req.PaymentID,
		Value:     0,
		Code:      codeSettleDeny,
		Message:   "Cannot settle",
		RequestID: req.RequestID,
	}, nil
}

func publishStatus(ctx context.Context, events adapter.EventPublisher, rec *model.AuthorizationRecord, log *zerolog.Logger) {
	if events == nil {
		return
	}
	if err := events.PublishStatusChange(ctx, *rec); err != nil {
		logging.With(ctx, log).Warn().Err(err).Str("status", string(rec.Status)).Msg("status event not published")
	}
}
