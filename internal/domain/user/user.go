// Package user holds the identity record and the credential store contract.
package user

import (
	"context"
	"time"

	"github.com/xenking/plantshop/internal/domain/apperr"
)

// Role grants capabilities to a user.
type Role string

const (
	// RoleUser is the default role of a registered customer.
	RoleUser Role = "user"
	// RoleAdmin may view every order and change order status.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = apperr.New(apperr.KindNotFound, "user-not-found")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = apperr.New(apperr.KindConflict, "email-already-exists")
)

// User is a registered identity. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	CreatedAt    time.Time
}

// Repository persists users and their password hashes.
type Repository interface {
	// Create inserts u. Returns ErrEmailTaken when the email is in use.
	Create(ctx context.Context, u *User) error
	// GetByEmail returns ErrNotFound when no user has the email.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByID returns ErrNotFound when no user has the id.
	GetByID(ctx context.Context, id string) (*User, error)
	// SetRole changes the role of an existing user.
	SetRole(ctx context.Context, id string, role Role) error
}
