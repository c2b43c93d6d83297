package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/ports/adapter"
)

var _ adapter.ConfirmTokens = (*ConfirmTokenManager)(nil)

const confirmAudience = "origami-confirm"

type confirmClaims struct {
	PaymentID string `json:"pid"`
	jwt.RegisteredClaims
}

// ConfirmTokenManager signs short-lived HS256 tokens binding a confirm call
// to one payment id.
type ConfirmTokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewConfirmTokenManager(secret string, ttl time.Duration) (*ConfirmTokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty confirm secret", domain.ErrConfiguration)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ConfirmTokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// SetClock replaces the time source; used by tests.
func (m *ConfirmTokenManager) SetClock(now func() time.Time) { m.now = now }

func (m *ConfirmTokenManager) Mint(paymentID string) (string, error) {
	now := m.now()
	claims := confirmClaims{
		PaymentID: paymentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Audience:  jwt.ClaimStrings{confirmAudience},
			Subject:   paymentID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, expiry and that the token was minted for paymentID.
// Every failure matches domain.ErrUnauthorized.
func (m *ConfirmTokenManager) Verify(token, paymentID string) error {
	if token == "" {
		return fmt.Errorf("%w: missing confirm token", domain.ErrUnauthorized)
	}
	claims := &confirmClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(confirmAudience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tkn.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.PaymentID != paymentID {
		return fmt.Errorf("%w: token issued for another payment", domain.ErrUnauthorized)
	}
	return nil
}
