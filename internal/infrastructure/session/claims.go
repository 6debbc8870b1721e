package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the client inspects. The client does not
// hold the signing secret, so tokens are decoded without signature
// verification; the backend remains the authority on validity.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
}

var errMalformedToken = errors.New("malformed token")

// ParseClaims decodes a JWT without verifying its signature
func ParseClaims(tokenString string) (*Claims, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, errMalformedToken
	}
	return claims, nil
}

// ExpiresSoon reports whether the access token expires within the given
// window, used to refresh proactively instead of waiting for a 401.
func (s Session) ExpiresSoon(window time.Duration) bool {
	if !s.Authenticated() {
		return false
	}
	exp := s.ExpiresAt
	if exp.IsZero() {
		claims, err := ParseClaims(s.AccessToken)
		if err != nil || claims.ExpiresAt == nil {
			return false
		}
		exp = claims.ExpiresAt.Time
	}
	return time.Until(exp) < window
}
