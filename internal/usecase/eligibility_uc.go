// File: internal/usecase/eligibility_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/adapter"
	"origami-connector/internal/infra/logging"
	"origami-connector/internal/infra/metrics"
)

// Compile-time check
var _ EligibilityUseCase = (*eligibilityUC)(nil)

type EligibilityUseCase interface {
	// CheckEligibility runs a fresh margin check; results are never cached.
	CheckEligibility(ctx context.Context, document, phone string) (*model.EligibilityResult, error)
}

type eligibilityUC struct {
	tokens   TokenUseCase
	provider adapter.CreditProvider
	dev      bool
	log      *zerolog.Logger
}

func NewEligibilityUseCase(tokens TokenUseCase, provider adapter.CreditProvider, dev bool, logger *zerolog.Logger) *eligibilityUC {
	return &eligibilityUC{tokens: tokens, provider: provider, dev: dev, log: logger}
}

func (u *eligibilityUC) CheckEligibility(ctx context.Context, document, phone string) (*model.EligibilityResult, error) {
	defer logging.TraceDuration(u.log, "EligibilityUC.CheckEligibility")()

	cpf := model.NormalizeDigits(document)
	if cpf == "" {
		return nil, domain.NewValidationError("cpf", "cpf obrigatório")
	}
	ph := model.NormalizeDigits(phone)
	if ph == "" {
		return nil, domain.NewValidationError("phone", "phone obrigatório")
	}

	token, err := u.tokens.GetAccessToken(ctx)
	if err != nil {
		metrics.IncEligibilityCheck("error")
		return nil, err
	}
	resp, err := u.provider.MarginCheck(ctx, token, model.MarginCheckRequest{CPF: cpf, Phone: ph})
	if err != nil {
		metrics.IncEligibilityCheck("error")
		u.log.Warn().Err(err).
			Str("cpf", logging.Redact(cpf, u.dev)).
			Msg("margin check failed")
		return nil, domain.Dependency("origami margin check", err)
	}

	res := &model.EligibilityResult{
		CPF:            cpf,
		Phone:          ph,
		Eligible:       resp.IsEligible,
		AvailableLimit: model.ToMinorUnits(resp.MarginAvailable),
		Currency:       model.EligibilityCurrency,
		Message:        "Não elegível",
		Origami: model.ProviderProfile{
			Name:            resp.Name,
			EmployerName:    resp.EmployerName,
			TotalEarnings:   resp.TotalEarnings,
			MarginAvailable: resp.MarginAvailable,
		},
	}
	if res.Eligible {
		res.Message = "Elegível"
		metrics.IncEligibilityCheck("eligible")
	} else {
		metrics.IncEligibilityCheck("not_eligible")
	}
	return res, nil
}
