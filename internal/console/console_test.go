package console

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/docstore"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/state"
	"github.com/fatih/color"
	"github.com/go-playground/assert/v2"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	color.NoColor = true
}

func TestRender(t *testing.T) {
	st := posts.State{
		Status: state.StatusSucceeded,
		Posts: []posts.Post{
			{
				ID: "p2", Content: "second", AuthorID: "u2", AuthorName: "Bob",
				CreatedAt: "2024-03-01T12:00:02.000Z", Likes: []string{"u1"},
				Comments: []posts.Comment{
					{ID: "c1", Content: "hey", AuthorID: "u1", AuthorName: "Ann", Likes: []string{}},
				},
			},
			{
				ID: "p1", Content: "first", AuthorID: "u1", AuthorName: "Ann",
				CreatedAt: "2024-03-01T12:00:01.000Z", Likes: []string{}, Comments: []posts.Comment{},
			},
		},
	}

	var buf bytes.Buffer
	Render(&buf, st, "u1")
	want := " 1. Bob  2024-03-01T12:00:02.000Z  likes:1*\n" +
		"    second\n" +
		"      1) Ann: hey  likes:0  [del]\n" +
		" 2. Ann  2024-03-01T12:00:01.000Z  likes:0  [del]\n" +
		"    first\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	Render(&buf, posts.State{Status: state.StatusSucceeded}, "")
	assert.Equal(t, "no posts yet\n", buf.String())

	buf.Reset()
	Render(&buf, posts.State{Status: state.StatusLoading}, "")
	assert.Equal(t, "loading posts...\n", buf.String())
}

func TestConsoleSession(t *testing.T) {
	ctx := context.Background()
	provider := identity.NewLocal(identity.NewMemoryAccounts(), "console-secret", time.Hour)
	provider.Cost = bcrypt.MinCost
	_, err := provider.Register(ctx, identity.Registration{
		Email: "ann@example.com", Password: "password-ann", DisplayName: "Ann",
	})
	assert.Equal(t, nil, err)

	sess, err := session.Open(ctx, provider, docstore.NewMemoryStore())
	assert.Equal(t, nil, err)
	defer sess.Close()

	script := strings.Join([]string{
		"post before login",
		"login",
		"post hello world",
		"like 1",
		"comment 1 nice one",
		"clike 1 1",
		"list",
		"uncomment 1 1",
		"delete 1",
		"list",
		"bogus",
		"quit",
		"list",
	}, "\n")

	var out bytes.Buffer
	c := New(sess, bufio.NewReader(strings.NewReader(script)), &out,
		identity.StaticPrompter{Email: "ann@example.com", Password: "password-ann"})
	assert.Equal(t, nil, c.Run(ctx))

	got := out.String()
	for _, want := range []string{
		"sign in first (login)",
		"signed in as Ann",
		"feed updated: 1 posts",
		"    hello world\n",
		"likes:1*  [del]\n",
		"      1) Ann: nice one  likes:1*  [del]\n",
		"feed updated: 0 posts",
		"no posts yet",
		"unknown command, type help",
	} {
		assert.Equal(t, true, strings.Contains(got, want))
	}
	// nothing after quit runs
	assert.Equal(t, 1, strings.Count(got, "no posts yet"))
}

func TestConsoleEndOfInput(t *testing.T) {
	ctx := context.Background()
	provider := identity.NewLocal(identity.NewMemoryAccounts(), "console-secret", time.Hour)
	sess, err := session.Open(ctx, provider, docstore.NewMemoryStore())
	assert.Equal(t, nil, err)
	defer sess.Close()

	var out bytes.Buffer
	c := New(sess, bufio.NewReader(strings.NewReader("whoami")), &out, identity.StaticPrompter{})
	assert.Equal(t, nil, c.Run(ctx))
	assert.Equal(t, true, strings.Contains(out.String(), "signed out"))
}

// droppingDocs records the error callback of each live query so a test can end it.
type droppingDocs struct {
	*docstore.MemoryStore

	mu      sync.Mutex
	onError func(error)
	dropped bool
}

func (d *droppingDocs) Listen(ctx context.Context, q docstore.Query, onSnapshot func([]docstore.Snapshot), onError func(error)) (docstore.Listener, error) {
	d.mu.Lock()
	d.onError = onError
	d.dropped = false
	d.mu.Unlock()
	return d.MemoryStore.Listen(ctx, q, func(snaps []docstore.Snapshot) {
		d.mu.Lock()
		dropped := d.dropped
		d.mu.Unlock()
		if !dropped {
			onSnapshot(snaps)
		}
	}, onError)
}

func (d *droppingDocs) drop() {
	d.mu.Lock()
	d.dropped = true
	fail := d.onError
	d.mu.Unlock()
	fail(docstore.ErrFeedClosed)
}

func TestFetchReopensFailedFeed(t *testing.T) {
	ctx := context.Background()
	provider := identity.NewLocal(identity.NewMemoryAccounts(), "console-secret", time.Hour)
	provider.Cost = bcrypt.MinCost
	_, err := provider.Register(ctx, identity.Registration{
		Email: "ann@example.com", Password: "password-ann", DisplayName: "Ann",
	})
	assert.Equal(t, nil, err)

	docs := &droppingDocs{MemoryStore: docstore.NewMemoryStore()}
	sess, err := session.Open(ctx, provider, docs)
	assert.Equal(t, nil, err)
	defer sess.Close()

	var out bytes.Buffer
	c := New(sess, bufio.NewReader(strings.NewReader("")), &out,
		identity.StaticPrompter{Email: "ann@example.com", Password: "password-ann"})

	_, err = c.Execute(ctx, "login")
	assert.Equal(t, nil, err)

	docs.drop()
	assert.Equal(t, true, sess.FeedFailed())

	_, err = c.Execute(ctx, "post missed by the feed")
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(sess.Posts.State().Posts))

	out.Reset()
	_, err = c.Execute(ctx, "fetch")
	assert.Equal(t, nil, err)
	assert.Equal(t, false, sess.FeedFailed())
	assert.Equal(t, true, strings.Contains(out.String(), "    missed by the feed\n"))

	// the reopened feed is live again
	_, err = c.Execute(ctx, "post second")
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(sess.Posts.State().Posts))

	docs.drop()
	_, err = c.Execute(ctx, "resubscribe")
	assert.Equal(t, nil, err)
	assert.Equal(t, false, sess.FeedFailed())
}
