package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const ProviderPassword = "password"

// Local signs users in against Accounts with bcrypt password hashes and issues
// revocable HS256 session tokens.
type Local struct {
	accounts Accounts
	secret   []byte
	expiry   time.Duration

	// Cost is the bcrypt cost used by Register.
	Cost int
	Now  func() time.Time

	mu        sync.Mutex
	current   *User
	listeners map[int]func(*User)
	nextID    int
}

func NewLocal(accounts Accounts, secret string, expiry time.Duration) *Local {
	return &Local{
		accounts:  accounts,
		secret:    []byte(secret),
		expiry:    expiry,
		Cost:      bcrypt.DefaultCost,
		Now:       time.Now,
		listeners: make(map[int]func(*User)),
	}
}

type Registration struct {
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
}

func (p *Local) Register(ctx context.Context, reg Registration) (*User, error) {
	email := normalizeEmail(reg.Email)
	if email == "" || len(reg.Password) < 8 {
		return nil, ErrWeakRegistration
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), p.Cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Email:        email,
		Password:     string(hash),
		DisplayName:  optional(reg.DisplayName),
		PhotoURL:     optional(reg.PhotoURL),
		AuthProvider: ProviderPassword,
	}
	if err := p.accounts.CreateUser(ctx, &user); err != nil {
		return nil, err
	}
	return toIdentity(&user, "", time.Time{}), nil
}

func (p *Local) SignIn(ctx context.Context, prompt Prompter) (*User, error) {
	creds, err := prompt.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	account, err := p.accounts.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := p.Now()
	token, err := IssueToken(p.secret, account.ID.String(), account.Email, now, p.expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	session := models.Session{
		ID:        uuid.New(),
		UserID:    account.ID,
		TokenHash: HashToken(token),
		ExpiresAt: now.Add(p.expiry),
	}
	if err := p.accounts.CreateSession(ctx, &session); err != nil {
		return nil, err
	}

	user := toIdentity(account, token, now)
	p.set(user)
	slog.Info("user signed in", "uid", user.UID)
	return user, nil
}

func (p *Local) SignOut(ctx context.Context) error {
	current := p.Current()
	if current == nil {
		return nil
	}
	if current.Token != "" {
		if err := p.accounts.RevokeSession(ctx, HashToken(current.Token)); err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
	}
	p.set(nil)
	slog.Info("user signed out", "uid", current.UID)
	return nil
}

// Verify checks a session token issued by SignIn and returns its identity.
func (p *Local) Verify(ctx context.Context, token string) (*User, error) {
	claims, err := ParseToken(p.secret, token)
	if err != nil {
		return nil, err
	}
	session, err := p.accounts.FindSession(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if session.Revoked || p.Now().After(session.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	account, err := p.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toIdentity(account, token, claims.IssuedAt.Time), nil
}

func (p *Local) Current() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Local) OnChange(fn func(*User)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Local) set(user *User) {
	p.mu.Lock()
	p.current = user
	listeners := make([]func(*User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}
}

func toIdentity(account *models.User, token string, issuedAt time.Time) *User {
	email := account.Email
	return &User{
		UID:         account.ID.String(),
		Email:       &email,
		DisplayName: account.DisplayName,
		PhotoURL:    account.PhotoURL,
		ProviderID:  ProviderPassword,
		Token:       token,
		IssuedAt:    issuedAt,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
