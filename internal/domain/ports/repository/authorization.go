package repository

import (
	"context"

	"origami-connector/internal/domain/model"
)

// AuthorizationRepository owns AuthorizationRecords, one per payment id.
// Get returns (nil, nil) when no record exists.
type AuthorizationRepository interface {
	Get(ctx context.Context, paymentID string) (*model.AuthorizationRecord, error)
	Save(ctx context.Context, rec *model.AuthorizationRecord) error
}
