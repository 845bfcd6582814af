package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidToken       = errors.New("invalid or expired session token")
	ErrSignInAborted      = errors.New("sign-in aborted")
	ErrWeakRegistration   = errors.New("email required and password must be at least 8 characters")
)

// User is the provider's view of a signed-in identity. Token, ProviderID and
// IssuedAt are provider specific and never leave the auth boundary.
type User struct {
	UID         string
	Email       *string
	DisplayName *string
	PhotoURL    *string

	ProviderID string
	Token      string
	IssuedAt   time.Time
}

type Credentials struct {
	Email    string
	Password string
}

// Prompter performs the interactive part of a sign-in.
type Prompter interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticPrompter answers with credentials collected elsewhere, e.g. a login form.
type StaticPrompter Credentials

func (p StaticPrompter) Credentials(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}
	return Credentials(p), nil
}

// Provider is the identity collaborator.
type Provider interface {
	SignIn(ctx context.Context, prompt Prompter) (*User, error)
	SignOut(ctx context.Context) error
	// OnChange calls fn with the current identity (nil when signed out) right away and
	// again after every change, until the returned cancel func is called.
	OnChange(fn func(*User)) (cancel func())
	Current() *User
}
