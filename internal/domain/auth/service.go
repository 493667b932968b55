package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/plantshop/internal/domain/apperr"
	"github.com/xenking/plantshop/internal/domain/user"
)

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// Issuer mints session tokens.
type Issuer interface {
	Issue(id Identity) (string, error)
}

// Credentials is the input of Register and Login. Name is only used on
// registration.
type Credentials struct {
	Email    string
	Password string
	Name     string
}

// Session is returned on successful registration or login.
type Session struct {
	Token string
	User  Profile
}

// Profile is the public view of a user.
type Profile struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  *string   `json:"name"`
	Role  user.Role `json:"role"`
}

// Service registers users and exchanges credentials for session tokens.
type Service struct {
	users  user.Repository
	tokens Issuer
	cost   int
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates an auth Service.
func NewService(users user.Repository, tokens Issuer, opts ...Option) *Service {
	s := &Service{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a user with the default role and returns a session for it.
func (s *Service) Register(ctx context.Context, c Credentials) (*Session, error) {
	email := strings.TrimSpace(c.Email)
	if email == "" || c.Password == "" {
		return nil, ErrCredentialsRequired
	}
	if len(c.Password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(c.Name),
		Role:         user.RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, user.ErrEmailTaken
		}
		return nil, apperr.Persistence(err, "register-failed")
	}

	zctx.From(ctx).Info("User registered", zap.String("user_id", u.ID))
	return s.session(u)
}

// Login verifies the password of the user with the given email.
func (s *Service) Login(ctx context.Context, c Credentials) (*Session, error) {
	email := strings.TrimSpace(c.Email)
	if email == "" || c.Password == "" {
		return nil, ErrCredentialsRequired
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Persistence(err, "login-failed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) session(u *user.User) (*Session, error) {
	token, err := s.tokens.Issue(Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	return &Session{Token: token, User: ProfileOf(u)}, nil
}

// ProfileOf returns the public view of u.
func ProfileOf(u *user.User) Profile {
	p := Profile{ID: u.ID, Email: u.Email, Role: u.Role}
	if u.Name != "" {
		name := u.Name
		p.Name = &name
	}
	return p
}
