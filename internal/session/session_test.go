package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/state"
	"github.com/go-playground/assert/v2"
	"golang.org/x/crypto/bcrypt"
)

func newTestSession(t *testing.T) (*Session, *identity.Local) {
	t.Helper()
	return newTestSessionOver(t, docstore.NewMemoryStore())
}

func newTestSessionOver(t *testing.T, docs docstore.Store) (*Session, *identity.Local) {
	t.Helper()
	provider := identity.NewLocal(identity.NewMemoryAccounts(), "test-secret", time.Hour)
	provider.Cost = bcrypt.MinCost
	for _, reg := range []identity.Registration{
		{Email: "ann@example.com", Password: "password-ann", DisplayName: "Ann"},
		{Email: "bob@example.com", Password: "password-bob"},
	} {
		_, err := provider.Register(context.Background(), reg)
		assert.Equal(t, nil, err)
	}

	s, err := Open(context.Background(), provider, docs)
	assert.Equal(t, nil, err)
	t.Cleanup(s.Close)
	return s, provider
}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	assert.Equal(t, state.StatusSucceeded, s.Posts.State().Status)

	err := s.Auth.LoginWithProvider(ctx, identity.StaticPrompter{Email: "ann@example.com", Password: "password-ann"})
	assert.Equal(t, nil, err)
	ann := s.Auth.User().UID

	var postID string
	err = s.Dispatch(ctx, "add_post", func(ctx context.Context) error {
		id, err := s.Posts.AddPost(ctx, "hello")
		postID = id
		return err
	})
	assert.Equal(t, nil, err)

	p, ok := s.Posts.Post(postID)
	assert.Equal(t, true, ok)
	assert.Equal(t, ann, p.AuthorID)
	assert.Equal(t, "Ann", p.AuthorName)

	assert.Equal(t, nil, s.Auth.Logout(ctx))
	assert.Equal(t, true, s.Auth.User() == nil)

	err = s.Auth.LoginWithProvider(ctx, identity.StaticPrompter{Email: "bob@example.com", Password: "password-bob"})
	assert.Equal(t, nil, err)

	err = s.Dispatch(ctx, "delete_post", func(ctx context.Context) error {
		return s.Posts.DeletePost(ctx, postID)
	})
	assert.Equal(t, true, errors.Is(err, apperr.ErrAuthorizationDenied))

	comment, err := s.Posts.AddComment(ctx, postID, "hi ann")
	assert.Equal(t, nil, err)
	assert.Equal(t, "Anonymous", comment.AuthorName)

	p, _ = s.Posts.Post(postID)
	assert.Equal(t, 1, len(p.Comments))
}

func TestSessionCloseStopsUpdates(t *testing.T) {
	ctx := context.Background()
	s, provider := newTestSession(t)

	s.Close()
	s.Close()

	provider.SignIn(ctx, identity.StaticPrompter{Email: "ann@example.com", Password: "password-ann"})
	assert.Equal(t, true, s.Auth.User() == nil)

	assert.Equal(t, ErrClosed, s.Resubscribe(ctx))
}

func TestResubscribe(t *testing.T) {
	s, _ := newTestSession(t)
	assert.Equal(t, nil, s.Resubscribe(context.Background()))
	assert.Equal(t, state.StatusSucceeded, s.Posts.State().Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, s.Resubscribe(ctx))
}

// closingDocs lets a test end the most recent live query with an error, as a
// dropped change feed does.
type closingDocs struct {
	*docstore.MemoryStore

	mu    sync.Mutex
	dead  map[int]bool
	last  int
	fails map[int]func(error)
}

func newClosingDocs() *closingDocs {
	return &closingDocs{
		MemoryStore: docstore.NewMemoryStore(),
		dead:        map[int]bool{},
		fails:       map[int]func(error){},
	}
}

func (d *closingDocs) Listen(ctx context.Context, q docstore.Query, onSnapshot func([]docstore.Snapshot), onError func(error)) (docstore.Listener, error) {
	d.mu.Lock()
	d.last++
	id := d.last
	d.fails[id] = onError
	d.mu.Unlock()

	return d.MemoryStore.Listen(ctx, q, func(snaps []docstore.Snapshot) {
		d.mu.Lock()
		dead := d.dead[id]
		d.mu.Unlock()
		if !dead {
			onSnapshot(snaps)
		}
	}, onError)
}

func (d *closingDocs) closeFeed(err error) {
	d.mu.Lock()
	d.dead[d.last] = true
	fail := d.fails[d.last]
	d.mu.Unlock()
	fail(err)
}

func TestResubscribeAfterFeedFailure(t *testing.T) {
	docs := newClosingDocs()
	s, _ := newTestSessionOver(t, docs)
	ctx := context.Background()
	assert.Equal(t, nil, s.Auth.LoginWithProvider(ctx, identity.StaticPrompter{Email: "ann@example.com", Password: "password-ann"}))

	_, err := s.Posts.AddPost(ctx, "before")
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(s.Posts.State().Posts))

	docs.closeFeed(docstore.ErrFeedClosed)
	assert.Equal(t, true, s.FeedFailed())

	_, err = s.Posts.AddPost(ctx, "while down")
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(s.Posts.State().Posts))

	// a request-scoped context must not bound the reopened feed
	reqCtx, cancel := context.WithCancel(ctx)
	assert.Equal(t, nil, s.Dispatch(reqCtx, "subscribe_posts", s.Resubscribe))
	cancel()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, false, s.FeedFailed())
	assert.Equal(t, 2, len(s.Posts.State().Posts))

	_, err = s.Posts.AddPost(ctx, "after")
	assert.Equal(t, nil, err)
	st := s.Posts.State()
	assert.Equal(t, state.StatusSucceeded, st.Status)
	assert.Equal(t, 3, len(st.Posts))
}

func TestDispatchReturnsErrorsUnchanged(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	remote := apperr.Remote("add post", errors.New("connection reset"))
	err := s.Dispatch(ctx, "add_post", func(context.Context) error { return remote })
	assert.Equal(t, remote, err)

	err = s.Dispatch(ctx, "subscribe", func(context.Context) error { return context.Canceled })
	assert.Equal(t, context.Canceled, err)

	err = s.Dispatch(ctx, "noop", func(context.Context) error { return nil })
	assert.Equal(t, nil, err)
}
