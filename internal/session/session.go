package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/auth"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/state"
	"github.com/getsentry/sentry-go"
)

var ErrClosed = errors.New("session closed")

// Session wires the two stores to their collaborators for the lifetime of one view.
// It owns the provider binding and the live post subscription and releases both on Close.
type Session struct {
	Auth  *auth.Store
	Posts *posts.Store

	// ctx bounds every live subscription the session opens.
	ctx context.Context

	mu     sync.Mutex
	unbind func()
	feed   *posts.Subscription
	closed bool
}

// Open binds the auth store to provider and subscribes to posts. The subscription
// ends when ctx ends or Close is called.
func Open(ctx context.Context, provider identity.Provider, docs docstore.Store) (*Session, error) {
	authStore := auth.NewStore(provider)
	s := &Session{
		Auth:  authStore,
		Posts: posts.NewStore(docs, authStore),
		ctx:   ctx,
	}

	s.unbind = authStore.Bind()
	feed, err := s.Posts.SubscribeToPosts(ctx)
	if err != nil {
		s.unbind()
		return nil, err
	}
	s.feed = feed
	return s, nil
}

// Resubscribe replaces the live subscription, e.g. after it failed. ctx only gates
// the call; the new subscription lives as long as the session.
func (s *Session) Resubscribe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.feed != nil {
		s.feed.Cancel()
		s.feed = nil
	}
	feed, err := s.Posts.SubscribeToPosts(s.ctx)
	if err != nil {
		return err
	}
	s.feed = feed
	return nil
}

// FeedFailed reports whether the live post subscription has failed and needs
// Resubscribe.
func (s *Session) FeedFailed() bool {
	return s.Posts.State().Status == state.StatusFailed
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.feed != nil {
		s.feed.Cancel()
	}
	s.unbind()
}

// Dispatch runs one user action and logs its failure. The error is returned unchanged
// so the view can react; nothing is retried. Cancellation is not logged.
func (s *Session) Dispatch(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || apperr.IsCancellation(err) {
		return err
	}

	uid := ""
	if user := s.Auth.User(); user != nil {
		uid = user.UID
	}

	if !errors.Is(err, apperr.ErrRemote) {
		slog.Warn("action rejected", "action", action, "uid", uid, "error", err)
		return err
	}

	slog.Error("action failed", "action", action, "uid", uid, "error", err)
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("action", action)
		if uid != "" {
			scope.SetUser(sentry.User{ID: uid})
		}
		hub.CaptureException(err)
	})
	return err
}
