//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/model"
	"origami-connector/internal/usecase"
)

func TestEligibility_ConvertsToMinorUnits(t *testing.T) {
	ctx := context.Background()
	earnings := 5000.0
	provider := &MockCreditProvider{
		MarginFunc: func(ctx context.Context, tok string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error) {
			return &model.MarginCheckResponse{
				Name: "Ana", IsEligible: true, MarginAvailable: 1234.56,
				TotalEarnings: &earnings, EmployerName: "ACME",
			}, nil
		},
	}
	uc := usecase.NewEligibilityUseCase(stubTokens{token: "jwt"}, provider, false, newTestLogger())

	res, err := uc.CheckEligibility(ctx, "123.456.789-01", "(11) 91234-5678")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.AvailableLimit != 123456 {
		t.Errorf("expected 123456 minor units, got %d", res.AvailableLimit)
	}
	if !res.Eligible || res.Message != "Elegível" || res.Currency != "BRL" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Origami.Name != "Ana" || res.Origami.EmployerName != "ACME" || res.Origami.TotalEarnings == nil {
		t.Errorf("provider extras not echoed: %+v", res.Origami)
	}
	if provider.LastMargin.CPF != "12345678901" || provider.LastMargin.Phone != "11912345678" {
		t.Errorf("identity not digit-normalized: %+v", provider.LastMargin)
	}
	if provider.LastBearer != "jwt" {
		t.Errorf("expected bearer jwt, got %q", provider.LastBearer)
	}
}

func TestEligibility_NotEligible(t *testing.T) {
	provider := &MockCreditProvider{
		MarginFunc: func(ctx context.Context, tok string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error) {
			return &model.MarginCheckResponse{IsEligible: false, MarginAvailable: 0.1}, nil
		},
	}
	uc := usecase.NewEligibilityUseCase(stubTokens{token: "jwt"}, provider, false, newTestLogger())
	res, err := uc.CheckEligibility(context.Background(), "1", "2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Eligible || res.Message != "Não elegível" || res.AvailableLimit != 10 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestEligibility_Validation(t *testing.T) {
	provider := &MockCreditProvider{}
	uc := usecase.NewEligibilityUseCase(stubTokens{token: "jwt"}, provider, false, newTestLogger())

	for _, tc := range []struct{ cpf, phone string }{{"", "11999999999"}, {"abc", "11999999999"}, {"123", ""}, {"123", "--"}} {
		_, err := uc.CheckEligibility(context.Background(), tc.cpf, tc.phone)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("cpf=%q phone=%q: expected validation error, got %v", tc.cpf, tc.phone, err)
		}
	}
	if provider.MarginCalls != 0 {
		t.Errorf("validation must happen before any provider call, got %d calls", provider.MarginCalls)
	}
}

func TestEligibility_ProviderFailureKeepsDetail(t *testing.T) {
	provider := &MockCreditProvider{
		MarginFunc: func(ctx context.Context, tok string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error) {
			return nil, &domain.DependencyError{Op: "origami margin_check", StatusCode: 500, Detail: `{"error":"upstream"}`}
		},
	}
	uc := usecase.NewEligibilityUseCase(stubTokens{token: "jwt"}, provider, false, newTestLogger())
	res, err := uc.CheckEligibility(context.Background(), "1", "2")
	if res != nil {
		t.Fatalf("no result may be fabricated on failure, got %+v", res)
	}
	var de *domain.DependencyError
	if !errors.As(err, &de) || de.Detail != `{"error":"upstream"}` {
		t.Fatalf("expected DependencyError with provider detail, got %v", err)
	}
}

func TestEligibility_TokenFailurePropagates(t *testing.T) {
	uc := usecase.NewEligibilityUseCase(stubTokens{err: domain.ErrConfiguration}, &MockCreditProvider{}, false, newTestLogger())
	if _, err := uc.CheckEligibility(context.Background(), "1", "2"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
