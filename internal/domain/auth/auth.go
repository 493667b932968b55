// Package auth issues and verifies session tokens and gates protected
// operations on the identity they carry.
package auth

import (
	"context"

	"github.com/xenking/plantshop/internal/domain/apperr"
	"github.com/xenking/plantshop/internal/domain/user"
)

var (
	// ErrMissingCredential is returned when a request carries no bearer token.
	ErrMissingCredential = apperr.New(apperr.KindAuth, "missing-authorization")
	// ErrInvalidToken is returned when a token is malformed, expired, or not
	// signed by this service.
	ErrInvalidToken = apperr.New(apperr.KindAuth, "invalid-token")
	// ErrUnauthenticated is returned by RequireAdmin when no identity is present.
	ErrUnauthenticated = apperr.New(apperr.KindAuth, "unauthorized")
	// ErrForbidden is returned when an authenticated identity lacks the admin role.
	ErrForbidden = apperr.New(apperr.KindForbidden, "forbidden")
	// ErrCredentialsRequired is returned when email or password is empty.
	ErrCredentialsRequired = apperr.New(apperr.KindValidation, "email-and-password-required")
	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordBytes.
	ErrPasswordTooLong = apperr.New(apperr.KindValidation, "password-too-long")
	// ErrInvalidCredentials is returned on an unknown email or a wrong password.
	ErrInvalidCredentials = apperr.New(apperr.KindAuth, "invalid-credentials")
)

// Identity is the authenticated subject of a request.
type Identity struct {
	UserID string
	Email  string
	Role   user.Role
}

// Subject returns the user id the identity asserts.
func (i Identity) Subject() string { return i.UserID }

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == user.RoleAdmin }

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
