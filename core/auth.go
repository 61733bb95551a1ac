package core

import (
	"context"
	"errors"
	"fmt"
)

// Role is the closed set of account roles. Keeping it a parsed type (rather
// than passing DB strings around) means an unknown role stored in the
// database fails closed at verification instead of sliding past a guard.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored role string onto the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated identity resolved from credentials or a
// bearer token. It is immutable and handed to downstream code explicitly;
// nothing reads it from ambient state.
type Principal struct {
	Subject string
	Role    Role
}

var (
	// ErrInvalidCredentials is returned when username/password is wrong.
	// Unknown username and wrong password are deliberately the same error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated covers missing, malformed, expired and orphaned
	// bearer tokens. Callers get no hint which check failed.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the principal is valid but its role is not allowed.
	ErrForbidden = errors.New("forbidden")
	// ErrCorruptCredential means a stored password hash could not be parsed.
	// It is surfaced to clients as ErrInvalidCredentials but logged apart.
	ErrCorruptCredential = errors.New("corrupt stored credential")
)

// AuthService defines password authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (Principal, error)
}
