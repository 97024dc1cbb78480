// Package utils mints access tokens for the lease API.  Production tokens
// come from the identity service; this is used by the CLI token command
// and by tests.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 JWT with sub=email, tenant_id, role, exp
// and iat claims.
func NewAccessToken(secret, email string, tenantID uint64, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":       email,
		"tenant_id": tenantID,
		"role":      role,
		"exp":       exp.Unix(),
		"iat":       now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
