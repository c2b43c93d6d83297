package repository

import (
	"context"

	"origami-connector/internal/domain/model"
)

// CredentialRepository holds the single cached provider credential.
// Get returns (nil, nil) when nothing is cached yet.
type CredentialRepository interface {
	Get(ctx context.Context) (*model.CachedCredential, error)
	Save(ctx context.Context, cred *model.CachedCredential) error
}
