package adapter

import (
	"context"

	"origami-connector/internal/domain/model"
)

// CreditProvider is the hex port for the external credit provider.
type CreditProvider interface {
	Name() string

	// Login exchanges the long-lived key/token for a bearer credential.
	Login(ctx context.Context, key, token string) (*model.ProviderLogin, error)
	// MarginCheck evaluates eligibility and available margin for an identity.
	MarginCheck(ctx context.Context, accessToken string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error)
}
