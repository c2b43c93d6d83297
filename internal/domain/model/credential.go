package model

import "time"

// TokenSafetyMargin is subtracted from a credential's expiry to refresh it early.
const TokenSafetyMargin = 120 * time.Second

// ProviderLogin is the credit provider's answer to a login exchange.
type ProviderLogin struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TokenType   string    `json:"tokenType"`
}

// CachedCredential is the singleton bearer credential shared by all callers.
// It is always written whole.
type CachedCredential struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TokenType   string    `json:"tokenType,omitempty"`
	SavedAt     time.Time `json:"savedAt"`
}

// UsableAt reports whether the credential can still be used at now,
// i.e. now < ExpiresAt - margin.
func (c *CachedCredential) UsableAt(now time.Time, margin time.Duration) bool {
	if c == nil || c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-margin))
}
