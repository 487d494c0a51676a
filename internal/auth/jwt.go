package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity provider's claims. The profile fields stamp new listings with the owner's contact details.
type Claims struct {
	UserID   string `json:"user_id"`
	IsAdmin  bool   `json:"is_admin"`
	Name     string `json:"name,omitempty"`
	Whatsapp string `json:"whatsapp,omitempty"`
	jwt.RegisteredClaims
}

const clockSkew = 30 * time.Second

var tokenParser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
	jwt.WithExpirationRequired(),
	jwt.WithLeeway(clockSkew),
)

// ParseToken verifies an HMAC-signed bearer token and returns its claims.
// A token without a user_id claim falls back to its subject.
func ParseToken(tokenString, secretKey string) (*Claims, error) {
	claims := &Claims{}
	_, err := tokenParser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}
