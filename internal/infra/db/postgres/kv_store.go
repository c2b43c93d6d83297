package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/ports/repository"
)

var _ repository.ExpiringKVStore = (*KVStore)(nil)

// executor is the part of *pgxpool.Pool (or a pgx.Tx) the store needs.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
  bucket     TEXT        NOT NULL,
  key        TEXT        NOT NULL,
  value      JSONB       NOT NULL,
  expires_at TIMESTAMPTZ NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (bucket, key)
);
CREATE INDEX IF NOT EXISTS kv_store_expires_at_idx ON kv_store (expires_at) WHERE expires_at IS NOT NULL;`

// KVStore keeps JSON documents in one table keyed by (bucket, key).
// Each save is a single upsert of the whole document.
type KVStore struct {
	db executor
}

func NewKVStore(db executor) *KVStore {
	return &KVStore{db: db}
}

// EnsureSchema creates the kv_store table if it is missing.
func (s *KVStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, kvSchema); err != nil {
		return fmt.Errorf("ensure kv_store schema: %w", err)
	}
	return nil
}

func (s *KVStore) SaveJSON(ctx context.Context, bucket, key string, value any) error {
	return s.SaveJSONWithTTL(ctx, bucket, key, value, 0)
}

func (s *KVStore) SaveJSONWithTTL(ctx context.Context, bucket, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl).UTC()
		expiresAt = &t
	}
	const q = `
INSERT INTO kv_store (bucket, key, value, expires_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4, NOW())
ON CONFLICT (bucket, key) DO UPDATE SET
  value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW();`
	if _, err := s.db.Exec(ctx, q, bucket, key, string(data), expiresAt); err != nil {
		return fmt.Errorf("save %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *KVStore) GetJSON(ctx context.Context, bucket, key string, out any, nullIfNotFound bool) (bool, error) {
	const q = `SELECT value FROM kv_store WHERE bucket=$1 AND key=$2 AND (expires_at IS NULL OR expires_at > NOW());`
	var data []byte
	err := s.db.QueryRow(ctx, q, bucket, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		if nullIfNotFound {
			return false, nil
		}
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PurgeExpired deletes expired rows in bucket and returns how many went away.
func (s *KVStore) PurgeExpired(ctx context.Context, bucket string) (int64, error) {
	const q = `DELETE FROM kv_store WHERE bucket=$1 AND expires_at IS NOT NULL AND expires_at <= NOW();`
	tag, err := s.db.Exec(ctx, q, bucket)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", bucket, err)
	}
	return tag.RowsAffected(), nil
}
