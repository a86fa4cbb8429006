package asr

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const tokenTTL = 10 * time.Minute

// AccessToken is a short-lived bearer token for the websocket handshake,
// used by deployments that front the recognition server with token auth
// instead of (or on top of) Basic credentials.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// IsExpired reports whether the token is past its expiry.
func (t *AccessToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// mintAccessToken signs an HS256 token with the configured API secret.
// The subject identifies the client; servers validate the signature
// against the same shared secret.
func mintAccessToken(secret, subject string) (*AccessToken, error) {
	expiresAt := time.Now().Add(tokenTTL)

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &AccessToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// ParseAccessToken validates a token against the shared secret and
// returns its claims. Mostly useful in tests and server stubs.
func ParseAccessToken(tokenString, secret string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid access token")
	}
	return claims, nil
}
