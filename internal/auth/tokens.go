package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken covers bad signatures, unexpected algorithms, expired tokens
// and tokens without a user id.
var ErrInvalidToken = errors.New("invalid or expired token")

type claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed, expiring tokens that carry a user id.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager builds a manager signing with HS256. A non-positive ttl
// falls back to DefaultTokenTTL.
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	m := &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue signs a token for the user and returns it with its expiry.
func (m *TokenManager) Issue(userID int64) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, fmt.Errorf("issue token: invalid user id %d", userID)
	}

	issued := m.now()
	expires := issued.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature and expiry and returns the user id carried by the token.
func (m *TokenManager) Verify(token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	if c.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return c.UserID, nil
}
