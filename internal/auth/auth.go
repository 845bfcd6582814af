package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/state"
)

// User is the plain, serializable projection of a provider identity.
type User struct {
	UID         string  `json:"uid"`
	Email       *string `json:"email"`
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

type State struct {
	User   *User        `json:"user"`
	Status state.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// MapIdentity strips provider-specific fields. It never fails; nil maps to nil.
func MapIdentity(raw *identity.User) *User {
	if raw == nil {
		return nil
	}
	return &User{
		UID:         raw.UID,
		Email:       copyString(raw.Email),
		DisplayName: copyString(raw.DisplayName),
		PhotoURL:    copyString(raw.PhotoURL),
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type Store struct {
	provider  identity.Provider
	container *state.Container[State]
}

func NewStore(provider identity.Provider) *Store {
	return &Store{
		provider:  provider,
		container: state.NewContainer(State{Status: state.StatusIdle}),
	}
}

func (s *Store) State() State {
	return s.container.Get()
}

// User returns the signed-in user or nil.
func (s *Store) User() *User {
	return s.container.Get().User
}

func (s *Store) Subscribe(fn func(State)) func() {
	return s.container.Subscribe(fn)
}

// LoginWithProvider runs an interactive sign-in. Provider change notifications may
// land while it is in flight; whichever update lands last wins.
func (s *Store) LoginWithProvider(ctx context.Context, prompt identity.Prompter) error {
	s.container.Update(func(st *State) {
		st.Status = state.StatusLoading
	})

	raw, err := s.provider.SignIn(ctx, prompt)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Login failed"
		}
		s.container.Update(func(st *State) {
			st.Status = state.StatusFailed
			st.Error = msg
		})
		return providerError("sign in", err)
	}

	user := MapIdentity(raw)
	s.container.Update(func(st *State) {
		st.Status = state.StatusSucceeded
		st.User = user
	})
	return nil
}

// Logout clears the user once the provider signed out. Status is left as it was.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return providerError("sign out", err)
	}
	s.container.Update(func(st *State) {
		st.User = nil
	})
	return nil
}

func (s *Store) SetUser(user *User) {
	s.container.Update(func(st *State) {
		st.User = user
		st.Status = state.StatusIdle
	})
}

// Bind forwards every provider change into SetUser until the returned func is called.
func (s *Store) Bind() func() {
	return s.provider.OnChange(func(raw *identity.User) {
		user := MapIdentity(raw)
		slog.Debug("auth state changed", "signed_in", user != nil)
		s.SetUser(user)
	})
}

// providerError passes credential problems and cancellation through and reports
// everything else as a remote failure.
func providerError(op string, err error) error {
	switch {
	case apperr.IsCancellation(err),
		errors.Is(err, apperr.ErrRemote),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrSignInAborted):
		return err
	}
	return apperr.Remote(op, err)
}
