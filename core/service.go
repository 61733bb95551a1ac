package core

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// dummyPasswordHash is verified against when the username does not resolve,
// so an unknown user and a wrong password walk the same code path and take
// comparable time. It is not a credential; no password hashes to all zeros.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RepositoryAuthService authenticates username/password pairs against the
// user repository.
type RepositoryAuthService struct {
	users UserRepository
}

func NewRepositoryAuthService(users UserRepository) *RepositoryAuthService {
	return &RepositoryAuthService{users: users}
}

// Authenticate resolves a credential pair to a Principal. All mismatch
// shapes (unknown user, wrong password, unreadable stored hash, invalid
// stored role) come back as ErrInvalidCredentials; only repository failures
// surface as distinct errors.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Principal{}, ErrInvalidCredentials
	}

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return Principal{}, err
	}

	target := dummyPasswordHash
	if u != nil {
		target = u.PasswordHash
	}

	ok, verr := VerifyPassword(password, target)
	if verr != nil {
		if u != nil && errors.Is(verr, ErrCorruptCredential) {
			log.Printf("corrupt password hash for user id=%d", u.ID)
		}
		return Principal{}, ErrInvalidCredentials
	}
	if u == nil || !ok {
		return Principal{}, ErrInvalidCredentials
	}

	role, rerr := ParseRole(u.Role)
	if rerr != nil {
		log.Printf("invalid stored role for user id=%d: %v", u.ID, rerr)
		return Principal{}, ErrInvalidCredentials
	}

	return Principal{Subject: u.Username, Role: role}, nil
}

// TokenIssuer mints access tokens for authenticated principals with a fixed
// configured lifetime.
type TokenIssuer struct {
	codec *TokenCodec
	ttl   time.Duration
}

// NewTokenIssuer builds an issuer. A non-positive ttl is a wiring bug, not a
// request error, so it fails construction rather than every login.
func NewTokenIssuer(codec *TokenCodec, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		panic("token issuer requires a positive ttl")
	}
	return &TokenIssuer{codec: codec, ttl: ttl}
}

func (i *TokenIssuer) Issue(p Principal) (string, error) {
	return i.codec.Encode(p.Subject, i.ttl)
}

// TokenVerifier resolves a bearer token string to a live Principal.
type TokenVerifier struct {
	codec *TokenCodec
	users UserRepository
}

func NewTokenVerifier(codec *TokenCodec, users UserRepository) *TokenVerifier {
	return &TokenVerifier{codec: codec, users: users}
}

// Verify decodes the token and then re-checks the user store. The re-check
// runs on every call: deleting a user is the only revocation mechanism, and
// it must take effect before the token's own expiry.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (Principal, error) {
	if tokenString == "" {
		return Principal{}, ErrUnauthenticated
	}

	claims, err := v.codec.Decode(tokenString)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	u, err := v.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		return Principal{}, err
	}
	if u == nil {
		// Orphaned: subject deleted after issuance. Indistinguishable from
		// an expired token on the wire.
		return Principal{}, ErrUnauthenticated
	}

	role, rerr := ParseRole(u.Role)
	if rerr != nil {
		log.Printf("invalid stored role for user id=%d: %v", u.ID, rerr)
		return Principal{}, ErrUnauthenticated
	}

	return Principal{Subject: u.Username, Role: role}, nil
}
