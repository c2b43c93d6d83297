package model

import (
	"encoding/json"
	"time"
)

// IdempotencyEntry stores the first successful response for an Idempotency-Key.
type IdempotencyEntry struct {
	Scope       string          `json:"scope"`
	Key         string          `json:"key"`
	RequestHash string          `json:"requestHash"`
	StatusCode  int             `json:"statusCode"`
	Response    json.RawMessage `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
