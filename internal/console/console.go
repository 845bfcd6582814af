package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/identity"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
)

var errUnknownCommand = errors.New("unknown command, type help")

// Console is a line-oriented view over a session.
type Console struct {
	sess   *session.Session
	in     *bufio.Reader
	prompt identity.Prompter

	mu  sync.Mutex
	out io.Writer
}

func New(sess *session.Session, in *bufio.Reader, out io.Writer, prompt identity.Prompter) *Console {
	return &Console{sess: sess, in: in, out: out, prompt: prompt}
}

// Run reads commands until quit, end of input or ctx ending. Feed changes are
// announced between commands.
func (c *Console) Run(ctx context.Context) error {
	count := len(c.sess.Posts.State().Posts)
	unsubscribe := c.sess.Posts.Subscribe(func(st posts.State) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(st.Posts) != count {
			count = len(st.Posts)
			fmt.Fprintln(c.out, noticeStyle.Sprintf("feed updated: %d posts", count))
		}
	})
	defer unsubscribe()

	c.write(func(w io.Writer) { usage(w) })
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		c.write(func(w io.Writer) { fmt.Fprint(w, "> ") })

		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		quit, err := c.Execute(ctx, line)
		if err != nil {
			c.write(func(w io.Writer) { fmt.Fprintln(w, errorStyle.Sprint(describe(err))) })
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]
	rest := func(from int) string {
		if len(args) <= from {
			return ""
		}
		return strings.Join(args[from:], " ")
	}

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		c.write(func(w io.Writer) { usage(w) })
		return false, nil
	case "login":
		return false, c.sess.Dispatch(ctx, "login", c.login)
	case "logout":
		return false, c.sess.Dispatch(ctx, "logout", c.sess.Auth.Logout)
	case "whoami":
		c.whoami()
		return false, nil
	case "list":
		c.list()
		return false, nil
	case "fetch":
		// a failed live feed is reopened rather than read once
		action, fn := "fetch_posts", c.sess.Posts.FetchPosts
		if c.sess.FeedFailed() {
			action, fn = "subscribe_posts", c.sess.Resubscribe
		}
		if err := c.sess.Dispatch(ctx, action, fn); err != nil {
			return false, err
		}
		c.list()
		return false, nil
	case "resubscribe":
		if err := c.sess.Dispatch(ctx, "subscribe_posts", c.sess.Resubscribe); err != nil {
			return false, err
		}
		c.list()
		return false, nil
	case "post":
		return false, c.sess.Dispatch(ctx, "add_post", func(ctx context.Context) error {
			_, err := c.sess.Posts.AddPost(ctx, rest(0))
			return err
		})
	case "like":
		if len(args) < 1 {
			return false, errors.New("usage: like <post>")
		}
		return false, c.sess.Dispatch(ctx, "toggle_like", func(ctx context.Context) error {
			_, err := c.sess.Posts.ToggleLike(ctx, c.postID(args[0]))
			return err
		})
	case "delete":
		if len(args) < 1 {
			return false, errors.New("usage: delete <post>")
		}
		return false, c.sess.Dispatch(ctx, "delete_post", func(ctx context.Context) error {
			return c.sess.Posts.DeletePost(ctx, c.postID(args[0]))
		})
	case "comment":
		if len(args) < 1 {
			return false, errors.New("usage: comment <post> <text>")
		}
		return false, c.sess.Dispatch(ctx, "add_comment", func(ctx context.Context) error {
			_, err := c.sess.Posts.AddComment(ctx, c.postID(args[0]), rest(1))
			return err
		})
	case "clike":
		if len(args) < 2 {
			return false, errors.New("usage: clike <post> <comment>")
		}
		postID := c.postID(args[0])
		return false, c.sess.Dispatch(ctx, "toggle_comment_like", func(ctx context.Context) error {
			_, err := c.sess.Posts.ToggleCommentLike(ctx, postID, c.commentID(postID, args[1]))
			return err
		})
	case "uncomment":
		if len(args) < 2 {
			return false, errors.New("usage: uncomment <post> <comment>")
		}
		postID := c.postID(args[0])
		return false, c.sess.Dispatch(ctx, "delete_comment", func(ctx context.Context) error {
			return c.sess.Posts.DeleteComment(ctx, postID, c.commentID(postID, args[1]))
		})
	default:
		return false, errUnknownCommand
	}
}

func (c *Console) login(ctx context.Context) error {
	if err := c.sess.Auth.LoginWithProvider(ctx, c.prompt); err != nil {
		return err
	}
	c.whoami()
	return nil
}

func (c *Console) whoami() {
	user := c.sess.Auth.User()
	c.write(func(w io.Writer) {
		if user == nil {
			fmt.Fprintln(w, mutedStyle.Sprint("signed out"))
			return
		}
		name := user.UID
		if user.DisplayName != nil {
			name = *user.DisplayName
		}
		fmt.Fprintf(w, "signed in as %s\n", authorStyle.Sprint(name))
	})
}

func (c *Console) list() {
	uid := ""
	if user := c.sess.Auth.User(); user != nil {
		uid = user.UID
	}
	st := c.sess.Posts.State()
	c.write(func(w io.Writer) { Render(w, st, uid) })
}

// postID resolves a 1-based list number against the current list; anything else is
// taken as an id.
func (c *Console) postID(ref string) string {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return ref
	}
	list := c.sess.Posts.State().Posts
	if n < 1 || n > len(list) {
		return ref
	}
	return list[n-1].ID
}

func (c *Console) commentID(postID, ref string) string {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return ref
	}
	p, ok := c.sess.Posts.Post(postID)
	if !ok || n < 1 || n > len(p.Comments) {
		return ref
	}
	return p.Comments[n-1].ID
}

func (c *Console) write(fn func(w io.Writer)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.out)
}

func describe(err error) string {
	switch {
	case errors.Is(err, apperr.ErrAuthenticationRequired):
		return "sign in first (login)"
	case errors.Is(err, apperr.ErrAuthorizationDenied):
		return "only the author can do that"
	case errors.Is(err, apperr.ErrNotFound):
		return "no such post or comment"
	case errors.Is(err, apperr.ErrRemote):
		return "service unavailable, try again"
	case errors.Is(err, identity.ErrInvalidCredentials):
		return "wrong email or password"
	default:
		return err.Error()
	}
}
