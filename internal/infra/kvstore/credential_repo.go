package kvstore

import (
	"context"

	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/repository"
)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

type CredentialRepo struct {
	kv repository.KVStore
}

func NewCredentialRepo(kv repository.KVStore) *CredentialRepo {
	return &CredentialRepo{kv: kv}
}

func (r *CredentialRepo) Get(ctx context.Context) (*model.CachedCredential, error) {
	var cred model.CachedCredential
	found, err := r.kv.GetJSON(ctx, repository.BucketAuth, repository.KeyAccessToken, &cred, true)
	if err != nil || !found {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepo) Save(ctx context.Context, cred *model.CachedCredential) error {
	return r.kv.SaveJSON(ctx, repository.BucketAuth, repository.KeyAccessToken, cred)
}
