package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignTestToken mints an HS256 bearer token for actor. Production tokens come from the identity provider.
func SignTestToken(actor Actor, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   actor.UserID.String(),
		IsAdmin:  actor.IsAdmin,
		Name:     actor.Name,
		Whatsapp: actor.Whatsapp,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign test token: %w", err)
	}
	return signed, nil
}
