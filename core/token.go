package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the single decode failure the codec exposes. Signature
// mismatch, malformed structure, altered algorithm and expiry all collapse
// into it so a probing client cannot tell which check rejected the token.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the claim set carried inside an access token.
type TokenClaims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies access tokens with a process-wide shared
// secret using HS256. The secret is fixed for the codec's lifetime; rotating
// it invalidates all previously issued tokens.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec builds a codec. An empty secret is a programming error:
// config validation must have rejected it before this point.
func NewTokenCodec(secret string) *TokenCodec {
	if secret == "" {
		panic("token codec requires a non-empty secret")
	}
	return &TokenCodec{secret: []byte(secret)}
}

// Encode signs a claim set for subject expiring after ttl.
func (c *TokenCodec) Encode(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies signature and expiry and returns the embedded claims.
// The signing method is pinned to HS256 so a token rewritten to another
// algorithm (including "none") is rejected before key material is used.
func (c *TokenCodec) Decode(tokenString string) (TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil || token == nil || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return TokenClaims{}, ErrInvalidToken
	}

	out := TokenClaims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
