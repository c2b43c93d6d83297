package kvstore

import (
	"context"

	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/repository"
)

var _ repository.AuthorizationRepository = (*AuthorizationRepo)(nil)

// AuthorizationRepo keeps one record per payment id in the authorizations bucket.
type AuthorizationRepo struct {
	kv repository.KVStore
}

func NewAuthorizationRepo(kv repository.KVStore) *AuthorizationRepo {
	return &AuthorizationRepo{kv: kv}
}

func (r *AuthorizationRepo) Get(ctx context.Context, paymentID string) (*model.AuthorizationRecord, error) {
	var rec model.AuthorizationRecord
	found, err := r.kv.GetJSON(ctx, repository.BucketAuthorizations, paymentID, &rec, true)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (r *AuthorizationRepo) Save(ctx context.Context, rec *model.AuthorizationRecord) error {
	return r.kv.SaveJSON(ctx, repository.BucketAuthorizations, rec.PaymentID, rec)
}
