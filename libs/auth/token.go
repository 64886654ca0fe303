// Package auth mints the short-lived bearer tokens accepted by the
// self-hosted inference cluster.
package auth

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MintBearer creates an HS256 bearer token with apiKey as the 'iss'
// claim, signed with apiSecret. The model claim scopes the token to the
// model being invoked.
func MintBearer(apiKey, apiSecret, model, subject string, ttl time.Duration) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", fmt.Errorf("inference api key/secret required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"jti":   uuid.NewString(),
		"iss":   apiKey,
		"nbf":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"sub":   subject,
		"model": model,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
