package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"time"
)

// ErrInvalidAPIKey is returned when a token exchange presents a key
// that does not match the configured one.
var ErrInvalidAPIKey = errors.New("invalid API key")

// Service provides authentication operations
type Service struct {
	jwtSecret string
	apiKey    string
	expiry    time.Duration
}

// NewService creates a new auth service
func NewService(jwtSecret, apiKey string, expiry time.Duration) *Service {
	return &Service{
		jwtSecret: jwtSecret,
		apiKey:    apiKey,
		expiry:    expiry,
	}
}

// ExchangeAPIKey verifies the presented API key and, if it matches,
// issues a JWT for the named client.
func (s *Service) ExchangeAPIKey(client, key string) (string, error) {
	if s.apiKey == "" || !equalKeys(key, s.apiKey) {
		return "", ErrInvalidAPIKey
	}
	return GenerateToken(client, s.jwtSecret, s.expiry)
}

// ValidateToken validates a JWT token and returns the claims using service config
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(tokenString, s.jwtSecret)
}

// equalKeys compares two API keys in constant time over their hashes
func equalKeys(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
