package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Accounts persists users and issued sessions for the Local provider.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	CreateSession(ctx context.Context, session *models.Session) error
	FindSession(ctx context.Context, tokenHash string) (*models.Session, error)
	RevokeSession(ctx context.Context, tokenHash string) error
}

type GormAccounts struct {
	db *gorm.DB
}

func NewGormAccounts(db *gorm.DB) *GormAccounts {
	return &GormAccounts{db: db}
}

func (a *GormAccounts) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (a *GormAccounts) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (a *GormAccounts) CreateUser(ctx context.Context, user *models.User) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

func (a *GormAccounts) CreateSession(ctx context.Context, session *models.Session) error {
	if err := a.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (a *GormAccounts) FindSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	var session models.Session
	if err := a.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &session, nil
}

func (a *GormAccounts) RevokeSession(ctx context.Context, tokenHash string) error {
	return a.db.WithContext(ctx).Model(&models.Session{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}

// MemoryAccounts backs the Local provider when the document store runs in memory.
type MemoryAccounts struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	sessions map[string]*models.Session
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		users:    make(map[uuid.UUID]*models.User),
		sessions: make(map[string]*models.Session),
	}
}

func (a *MemoryAccounts) FindByEmail(_ context.Context, email string) (*models.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	email = normalizeEmail(email)
	for _, u := range a.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (a *MemoryAccounts) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.users[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *u
	return &copied, nil
}

func (a *MemoryAccounts) CreateUser(_ context.Context, user *models.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.users {
		if u.Email == user.Email {
			return ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	copied := *user
	a.users[user.ID] = &copied
	return nil
}

func (a *MemoryAccounts) CreateSession(_ context.Context, session *models.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()
	copied := *session
	a.sessions[session.TokenHash] = &copied
	return nil
}

func (a *MemoryAccounts) FindSession(_ context.Context, tokenHash string) (*models.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[tokenHash]
	if !ok {
		return nil, ErrInvalidToken
	}
	copied := *s
	return &copied, nil
}

func (a *MemoryAccounts) RevokeSession(_ context.Context, tokenHash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[tokenHash]; ok {
		s.Revoked = true
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
