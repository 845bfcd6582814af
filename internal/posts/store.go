package posts

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/auth"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/state"
	"github.com/oklog/ulid/v2"
)

type State struct {
	Posts  []Post       `json:"posts"`
	Status state.Status `json:"status"`
}

// CurrentUser reports who is signed in; *auth.Store satisfies it.
type CurrentUser interface {
	User() *auth.User
}

var postsQuery = docstore.Query{
	Collection: Collection,
	OrderBy:    "createdAt",
	Direction:  docstore.Descending,
}

// Store holds the post list. The list only changes when a subscription snapshot or
// FetchPosts result arrives; mutations write to the document store and wait for the
// next snapshot to show up locally.
type Store struct {
	docs      docstore.Store
	users     CurrentUser
	container *state.Container[State]

	Now   func() time.Time
	NewID func() string
}

func NewStore(docs docstore.Store, users CurrentUser) *Store {
	return &Store{
		docs:      docs,
		users:     users,
		container: state.NewContainer(State{Posts: []Post{}, Status: state.StatusIdle}),
		Now:       time.Now,
		NewID:     func() string { return ulid.Make().String() },
	}
}

// State returns a copy of the current state; the list keeps the store's order.
func (s *Store) State() State {
	st := s.container.Get()
	st.Posts = slices.Clone(st.Posts)
	return st
}

func (s *Store) Post(id string) (Post, bool) {
	for _, p := range s.container.Get().Posts {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}

func (s *Store) Subscribe(fn func(State)) func() {
	return s.container.Subscribe(fn)
}

// Subscription is the handle of a live post query.
type Subscription struct {
	listener docstore.Listener
}

// Cancel stops snapshot delivery. It is safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.listener.Stop()
}

// SubscribeToPosts opens a live query on posts, newest first, and returns once the
// first snapshot has replaced the list. Later snapshots keep replacing it until the
// subscription is cancelled or ctx ends; neither is reported as a failure. Calling it
// again while a subscription is live registers a second one.
func (s *Store) SubscribeToPosts(ctx context.Context) (*Subscription, error) {
	s.setStatus(state.StatusLoading)

	ready := make(chan struct{})
	failed := make(chan error, 1)
	var first sync.Once

	onSnapshot := func(snaps []docstore.Snapshot) {
		posts := decodePosts(snaps)
		delivered := false
		first.Do(func() {
			delivered = true
			s.container.Update(func(st *State) {
				st.Posts = posts
				st.Status = state.StatusSucceeded
			})
			close(ready)
		})
		if !delivered {
			s.container.Update(func(st *State) {
				st.Posts = posts
			})
		}
	}
	onError := func(err error) {
		if apperr.IsCancellation(err) {
			slog.Debug("post subscription stopped")
			return
		}
		slog.Error("post subscription failed", "action", "subscribe_posts", "error", err)
		s.setStatus(state.StatusFailed)
		select {
		case failed <- err:
		default:
		}
	}

	listener, err := s.docs.Listen(ctx, postsQuery, onSnapshot, onError)
	if err != nil {
		if apperr.IsCancellation(err) {
			s.setStatus(state.StatusIdle)
			return nil, err
		}
		slog.Error("failed to subscribe to posts", "action", "subscribe_posts", "error", err)
		s.setStatus(state.StatusFailed)
		return nil, apperr.Remote("subscribe to posts", err)
	}
	sub := &Subscription{listener: listener}

	select {
	case <-ready:
		return sub, nil
	case err := <-failed:
		sub.Cancel()
		return nil, apperr.Remote("subscribe to posts", err)
	case <-ctx.Done():
		sub.Cancel()
		return nil, ctx.Err()
	}
}

// FetchPosts replaces the list with a one-off read, newest first.
func (s *Store) FetchPosts(ctx context.Context) error {
	s.setStatus(state.StatusLoading)

	snaps, err := s.docs.List(ctx, postsQuery)
	if err != nil {
		s.setStatus(state.StatusFailed)
		return mapError("fetch posts", err)
	}

	posts := decodePosts(snaps)
	s.container.Update(func(st *State) {
		st.Posts = posts
		st.Status = state.StatusSucceeded
	})
	return nil
}

func (s *Store) setStatus(status state.Status) {
	s.container.Update(func(st *State) {
		st.Status = status
	})
}

func (s *Store) requireUser() (*auth.User, error) {
	user := s.users.User()
	if user == nil {
		return nil, apperr.ErrAuthenticationRequired
	}
	return user, nil
}

func authorName(user *auth.User) string {
	if user.DisplayName == nil || *user.DisplayName == "" {
		return anonymousAuthor
	}
	return *user.DisplayName
}

// AddPost stores a new post and returns its id.
func (s *Store) AddPost(ctx context.Context, content string) (string, error) {
	user, err := s.requireUser()
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.ErrInvalidContent
	}

	doc := docstore.Document{
		"content":    content,
		"authorId":   user.UID,
		"authorName": authorName(user),
		"createdAt":  docstore.ServerTimestamp(),
		"likes":      []string{},
		"comments":   []any{},
	}
	if user.PhotoURL != nil {
		doc["authorPhotoURL"] = *user.PhotoURL
	}

	id, err := s.docs.Create(ctx, Collection, doc)
	if err != nil {
		return "", mapError("add post", err)
	}
	slog.Info("post created", "post_id", id, "uid", user.UID)
	return id, nil
}

// ToggleLike adds the caller to the post's likes, or removes them if already there.
// It reports whether the caller likes the post afterwards.
func (s *Store) ToggleLike(ctx context.Context, postID string) (bool, error) {
	user, err := s.requireUser()
	if err != nil {
		return false, err
	}

	snap, err := s.docs.Get(ctx, Collection, postID)
	if err != nil {
		return false, mapError("toggle like", err)
	}

	liked := !slices.Contains(stringList(snap.Data["likes"]), user.UID)
	var change docstore.Transform
	if liked {
		change = docstore.ArrayUnion(user.UID)
	} else {
		change = docstore.ArrayRemove(user.UID)
	}
	if err := s.docs.Update(ctx, Collection, postID, docstore.Document{"likes": change}); err != nil {
		return false, mapError("toggle like", err)
	}
	return liked, nil
}

func (s *Store) DeletePost(ctx context.Context, postID string) error {
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	err = s.docs.RunTransaction(ctx, func(tx docstore.Tx) error {
		snap, err := tx.Get(Collection, postID)
		if err != nil {
			return err
		}
		if stringField(snap.Data["authorId"]) != user.UID {
			return apperr.ErrAuthorizationDenied
		}
		return tx.Delete(Collection, postID)
	})
	if err != nil {
		return mapError("delete post", err)
	}
	slog.Info("post deleted", "post_id", postID, "uid", user.UID)
	return nil
}

// AddComment appends a comment with a union, so concurrent additions all survive.
func (s *Store) AddComment(ctx context.Context, postID, content string) (*Comment, error) {
	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.ErrInvalidContent
	}

	comment := &Comment{
		ID:             s.NewID(),
		Content:        content,
		AuthorID:       user.UID,
		AuthorName:     authorName(user),
		AuthorPhotoURL: user.PhotoURL,
		CreatedAt:      s.Now().UTC().Format(TimeLayout),
		Likes:          []string{},
	}
	fields := map[string]any{
		"id":         comment.ID,
		"content":    comment.Content,
		"authorId":   comment.AuthorID,
		"authorName": comment.AuthorName,
		"createdAt":  comment.CreatedAt,
		"likes":      []string{},
	}
	if comment.AuthorPhotoURL != nil {
		fields["authorPhotoURL"] = *comment.AuthorPhotoURL
	}

	err = s.docs.Update(ctx, Collection, postID, docstore.Document{"comments": docstore.ArrayUnion(fields)})
	if err != nil {
		return nil, mapError("add comment", err)
	}
	return comment, nil
}

// ToggleCommentLike flips the caller's like on one comment inside a transaction and
// reports whether the caller likes it afterwards.
func (s *Store) ToggleCommentLike(ctx context.Context, postID, commentID string) (bool, error) {
	user, err := s.requireUser()
	if err != nil {
		return false, err
	}

	var liked bool
	err = s.docs.RunTransaction(ctx, func(tx docstore.Tx) error {
		snap, err := tx.Get(Collection, postID)
		if err != nil {
			return err
		}
		comments, idx := findComment(snap.Data["comments"], commentID)
		if idx < 0 {
			return apperr.ErrNotFound
		}

		target := maps.Clone(comments[idx].(map[string]any))
		likes := stringList(target["likes"])
		if slices.Contains(likes, user.UID) {
			likes = slices.DeleteFunc(likes, func(uid string) bool { return uid == user.UID })
			liked = false
		} else {
			likes = append(likes, user.UID)
			liked = true
		}
		target["likes"] = likes

		next := slices.Clone(comments)
		next[idx] = target
		return tx.Update(Collection, postID, docstore.Document{"comments": next})
	})
	if err != nil {
		return false, mapError("toggle comment like", err)
	}
	return liked, nil
}

func (s *Store) DeleteComment(ctx context.Context, postID, commentID string) error {
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	err = s.docs.RunTransaction(ctx, func(tx docstore.Tx) error {
		snap, err := tx.Get(Collection, postID)
		if err != nil {
			return err
		}
		comments, idx := findComment(snap.Data["comments"], commentID)
		if idx < 0 {
			return apperr.ErrNotFound
		}

		commentAuthor := stringField(comments[idx].(map[string]any)["authorId"])
		postAuthor := stringField(snap.Data["authorId"])
		if user.UID != commentAuthor && user.UID != postAuthor {
			return apperr.ErrAuthorizationDenied
		}

		next := slices.Delete(slices.Clone(comments), idx, idx+1)
		return tx.Update(Collection, postID, docstore.Document{"comments": next})
	})
	if err != nil {
		return mapError("delete comment", err)
	}
	slog.Info("comment deleted", "post_id", postID, "comment_id", commentID, "uid", user.UID)
	return nil
}

// findComment returns the raw comments array and the index of the comment with id,
// or -1. Raw elements are kept so fields this package does not know survive rewrites.
func findComment(v any, id string) ([]any, int) {
	comments, _ := v.([]any)
	for i, el := range comments {
		if m, ok := el.(map[string]any); ok && m["id"] == id {
			return comments, i
		}
	}
	return comments, -1
}

// mapError keeps the caller-facing taxonomy: store misses become ErrNotFound, local
// checks pass through and everything else is a remote failure.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrAuthorizationDenied),
		errors.Is(err, apperr.ErrAuthenticationRequired),
		errors.Is(err, apperr.ErrInvalidContent):
		return err
	default:
		return apperr.Remote(op, err)
	}
}
