package auth

import "strings"

// Verifier resolves a raw token into an identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Gate guards operations that require an authenticated caller.
type Gate struct {
	tokens Verifier
}

// NewGate creates a Gate verifying tokens with v.
func NewGate(v Verifier) *Gate {
	return &Gate{tokens: v}
}

// Authenticate resolves the value of an Authorization header. It fails with
// ErrMissingCredential when no bearer token is present and ErrInvalidToken
// when the token does not verify.
func (g *Gate) Authenticate(header string) (Identity, error) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return Identity{}, ErrMissingCredential
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return Identity{}, ErrMissingCredential
	}
	return g.tokens.Verify(token)
}

// RequireAdmin admits only the admin principal. A nil identity means
// Authenticate never ran and yields ErrUnauthenticated.
func RequireAdmin(id *Identity) error {
	if id == nil || id.UserID == "" {
		return ErrUnauthenticated
	}
	if !id.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
