// File: internal/usecase/token_uc.go
package usecase

import (
	"context"
	"fmt"
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
var _ TokenUseCase = (*tokenUC)(nil)

// TokenUseCase hands out a bearer token for the credit provider, logging in
// again only when the cached one is about to expire.
type TokenUseCase interface {
	GetAccessToken(ctx context.Context) (string, error)
}

type tokenUC struct {
	creds    repository.CredentialRepository
	provider adapter.CreditProvider
	key      string
	secret   string
	margin   time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewTokenUseCase(creds repository.CredentialRepository, provider adapter.CreditProvider, key, secret string, logger *zerolog.Logger) *tokenUC {
	return &tokenUC{
		creds:    creds,
		provider: provider,
		key:      key,
		secret:   secret,
		margin:   model.TokenSafetyMargin,
		now:      time.Now,
		log:      logger,
	}
}

func (u *tokenUC) SetClock(now func() time.Time) { u.now = now }

// GetAccessToken never serializes refreshes: two callers that both see an
// expired credential both log in and the last write wins.
func (u *tokenUC) GetAccessToken(ctx context.Context) (string, error) {
	defer logging.TraceDuration(u.log, "TokenUC.GetAccessToken")()

	if u.key == "" || u.secret == "" {
		return "", fmt.Errorf("%w: origami key/token not configured", domain.ErrConfiguration)
	}

	cached, err := u.creds.Get(ctx)
	if err != nil {
		return "", domain.Dependency("load cached credential", err)
	}
	now := u.now()
	if cached.UsableAt(now, u.margin) {
		metrics.IncCacheRequest("token", "hit")
		return cached.AccessToken, nil
	}
	metrics.IncCacheRequest("token", "miss")

	login, err := u.provider.Login(ctx, u.key, u.secret)
	if err != nil {
		metrics.IncTokenRefresh("error")
		return "", domain.Dependency("origami login", err)
	}
	fresh := &model.CachedCredential{
		AccessToken: login.AccessToken,
		ExpiresAt:   login.ExpiresAt,
		TokenType:   login.TokenType,
		SavedAt:     now.UTC(),
	}
	if err := u.creds.Save(ctx, fresh); err != nil {
		metrics.IncTokenRefresh("error")
		return "", domain.Dependency("save credential", err)
	}
	metrics.IncTokenRefresh("ok")
	u.log.Info().Time("expires_at", login.ExpiresAt).Msg("origami access token refreshed")
	return login.AccessToken, nil
}
